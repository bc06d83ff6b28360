package mongo

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/lendbridge/loanbook/internal/core/domain"
	"github.com/lendbridge/loanbook/internal/core/ports"
)

const (
	collectionLoans       = "loans"
	collectionDeployments = "deployments"
	collectionTransfers   = "transfers"
	collectionAccounts    = "accounts"

	maxAppendAttempts = 5
)

// AppendFeed publishes and subscribes to append notifications (Redis pub/sub).
type AppendFeed interface {
	Publish(ctx context.Context, n domain.Notification) error
	Subscribe(ctx context.Context) (ports.AppendSubscription, error)
}

type loanDoc struct {
	Contract     string     `bson:"contract"`
	Index        int        `bson:"index"`
	Owner        string     `bson:"owner"`
	Counterparty string     `bson:"counterparty"`
	Amount       string     `bson:"amount"` // base units, decimal string
	Term         int64      `bson:"term"`
	InterestRate int64      `bson:"interest_rate"`
	Issued       bool       `bson:"issued"`
	TxHash       string     `bson:"tx_hash"`
	CreatedAt    time.Time  `bson:"created_at"`
	IssuedAt     *time.Time `bson:"issued_at,omitempty"`
}

type deploymentDoc struct {
	Contract   string    `bson:"_id"`
	Address    string    `bson:"address"`
	NetworkID  string    `bson:"network_id"`
	Endpoint   string    `bson:"endpoint"`
	DeployedAt time.Time `bson:"deployed_at"`
}

type transferDoc struct {
	Kind     string    `bson:"kind"` // issue or send
	Contract string    `bson:"contract,omitempty"`
	Index    int       `bson:"index,omitempty"`
	From     string    `bson:"from"`
	To       string    `bson:"to"`
	Amount   string    `bson:"amount"`
	TxHash   string    `bson:"tx_hash"`
	At       time.Time `bson:"at"`
}

// accountDoc holds an account's balance as a delta from the initial balance,
// so accounts that never moved funds need no document.
type accountDoc struct {
	Address string               `bson:"_id"`
	Delta   primitive.Decimal128 `bson:"delta"`
}

// LoanStore implements ports.RecordStore and ports.Funds on MongoDB. Indices stay dense: an
// append takes count+1 and a unique index on (contract, index) rejects
// concurrent writers, which recount and retry.
type LoanStore struct {
	contract    string
	loans       *mongo.Collection
	deployments *mongo.Collection
	transfers   *mongo.Collection
	accounts    *mongo.Collection
	feed        AppendFeed
	initial     *big.Int
	log         zerolog.Logger
}

// NewLoanStore binds a store to contract.
func NewLoanStore(db *mongo.Database, contract string, feed AppendFeed, log zerolog.Logger) *LoanStore {
	return &LoanStore{
		contract:    contract,
		loans:       db.Collection(collectionLoans),
		deployments: db.Collection(collectionDeployments),
		transfers:   db.Collection(collectionTransfers),
		accounts:    db.Collection(collectionAccounts),
		feed:        feed,
		initial:     new(big.Int),
		log:         log,
	}
}

// WithInitialBalance sets the balance every account starts with.
func (s *LoanStore) WithInitialBalance(b *big.Int) *LoanStore {
	if b != nil {
		s.initial = new(big.Int).Set(b)
	}
	return s
}

// EnsureIndexes creates the indexes the store relies on.
func (s *LoanStore) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err := s.loans.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "contract", Value: 1}, {Key: "index", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "contract", Value: 1}, {Key: "owner", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("loan indexes: %w", err)
	}

	_, err = s.transfers.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "contract", Value: 1}, {Key: "index", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("transfer indexes: %w", err)
	}
	return nil
}

// Deploy records the contract's deployment metadata, replacing any previous
// record for the same contract.
func (s *LoanStore) Deploy(ctx context.Context, d domain.Deployment) (*domain.Deployment, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	d.Contract = s.contract
	if d.DeployedAt.IsZero() {
		d.DeployedAt = time.Now().UTC()
	}
	doc := deploymentDoc{
		Contract:   d.Contract,
		Address:    d.Address.String(),
		NetworkID:  d.NetworkID,
		Endpoint:   d.Endpoint,
		DeployedAt: d.DeployedAt,
	}

	_, err := s.deployments.ReplaceOne(ctx, bson.M{"_id": s.contract}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return nil, fmt.Errorf("deploy %s: %w", s.contract, err)
	}
	return &d, nil
}

func (s *LoanStore) Deployment(ctx context.Context) (*domain.Deployment, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var doc deploymentDoc
	err := s.deployments.FindOne(ctx, bson.M{"_id": s.contract}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: contract %s not deployed", domain.ErrStoreUnavailable, s.contract)
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
	}
	return &domain.Deployment{
		Contract:   doc.Contract,
		Address:    domain.Address(doc.Address),
		NetworkID:  doc.NetworkID,
		Endpoint:   doc.Endpoint,
		DeployedAt: doc.DeployedAt,
	}, nil
}

func (s *LoanStore) RecordCount(ctx context.Context) (int, error) {
	if _, err := s.Deployment(ctx); err != nil {
		return 0, err
	}
	return s.count(ctx)
}

func (s *LoanStore) count(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	n, err := s.loans.CountDocuments(ctx, bson.M{"contract": s.contract})
	if err != nil {
		return 0, fmt.Errorf("count loans: %w", err)
	}
	return int(n), nil
}

func (s *LoanStore) FetchRecord(ctx context.Context, index int) (domain.LoanRecord, error) {
	doc, err := s.find(ctx, index)
	if err != nil {
		return domain.LoanRecord{}, err
	}
	return s.toRecord(doc), nil
}

func (s *LoanStore) find(ctx context.Context, index int) (*loanDoc, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var doc loanDoc
	err := s.loans.FindOne(ctx, bson.M{"contract": s.contract, "index": index}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("fetch #%d: %w", index, domain.ErrRecordNotFound)
		}
		return nil, fmt.Errorf("fetch #%d: %w", index, err)
	}
	return &doc, nil
}

func (s *LoanStore) SubmitNewLoan(ctx context.Context, loan domain.NewLoan, from domain.Address) (*domain.TransactionResult, error) {
	if err := loan.Validate(); err != nil {
		return nil, err
	}
	if !loan.Owner.Equal(from) {
		return nil, domain.ErrNotLoanOwner
	}
	if _, err := s.Deployment(ctx); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	for attempt := 1; attempt <= maxAppendAttempts; attempt++ {
		count, err := s.count(ctx)
		if err != nil {
			return nil, err
		}

		index := count + 1
		doc := loanDoc{
			Contract:     s.contract,
			Index:        index,
			Owner:        loan.Owner.Lower().String(),
			Counterparty: loan.Counterparty.Lower().String(),
			Amount:       loan.Amount.String(),
			Term:         int64(loan.Term),
			InterestRate: int64(loan.InterestRate),
			TxHash:       domain.TxHash("addLoan", s.contract, strconv.Itoa(index), from.Lower().String(), now.Format(time.RFC3339Nano)),
			CreatedAt:    now,
		}

		if err := s.insert(ctx, doc); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				s.log.Debug().Int("index", index).Int("attempt", attempt).Msg("index taken by concurrent append, retrying")
				continue
			}
			return nil, fmt.Errorf("insert loan: %w", err)
		}

		s.publish(ctx, domain.Notification{Contract: s.contract, Index: index, TxHash: doc.TxHash, EmittedAt: now})
		return &domain.TransactionResult{TxHash: doc.TxHash, Index: index, From: from, SubmittedAt: now}, nil
	}
	return nil, fmt.Errorf("insert loan: gave up after %d concurrent appends", maxAppendAttempts)
}

func (s *LoanStore) insert(ctx context.Context, doc loanDoc) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	_, err := s.loans.InsertOne(ctx, doc)
	return err
}

// publish emits the append notification. The write has already succeeded, so
// a publish failure is logged and the next pass picks the record up.
func (s *LoanStore) publish(ctx context.Context, n domain.Notification) {
	if s.feed == nil {
		return
	}
	if err := s.feed.Publish(ctx, n); err != nil {
		s.log.Warn().Err(err).Int("index", n.Index).Msg("failed to publish append notification")
	}
}

func (s *LoanStore) SubmitIssueLoan(ctx context.Context, index int, from domain.Address) (*domain.TransactionResult, error) {
	if _, err := s.Deployment(ctx); err != nil {
		return nil, err
	}

	doc, err := s.find(ctx, index)
	if err != nil {
		return nil, err
	}
	switch {
	case !domain.Address(doc.Owner).Equal(from):
		return nil, domain.ErrNotLoanOwner
	case doc.Issued:
		return nil, domain.ErrAlreadyIssued
	}
	amount, ok := new(big.Int).SetString(doc.Amount, 10)
	if !ok {
		return nil, fmt.Errorf("issue loan #%d: %w: %q", index, domain.ErrMalformedAmount, doc.Amount)
	}

	now := time.Now().UTC()
	txHash := domain.TxHash("issueLoan", s.contract, strconv.Itoa(index), from.Lower().String(), now.Format(time.RFC3339Nano))

	updCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	owner, counterparty := domain.Address(doc.Owner), domain.Address(doc.Counterparty)
	if err := s.debit(updCtx, owner, amount); err != nil {
		return nil, err
	}

	res, err := s.loans.UpdateOne(updCtx,
		bson.M{"contract": s.contract, "index": index, "issued": false},
		bson.M{"$set": bson.M{"issued": true, "issued_at": now}},
	)
	if err != nil || res.ModifiedCount == 0 {
		s.refund(updCtx, owner, amount)
		if err != nil {
			return nil, fmt.Errorf("issue loan #%d: %w", index, err)
		}
		return nil, domain.ErrAlreadyIssued
	}

	if err := s.credit(updCtx, counterparty, amount); err != nil {
		s.log.Error().Err(err).Int("index", index).Str("to", doc.Counterparty).Msg("issued loan but failed to credit counterparty")
	}
	s.recordTransfer(updCtx, transferDoc{
		Kind:     "issue",
		Contract: s.contract,
		Index:    index,
		From:     doc.Owner,
		To:       doc.Counterparty,
		Amount:   doc.Amount,
		TxHash:   txHash,
		At:       now,
	})

	return &domain.TransactionResult{TxHash: txHash, Index: index, From: from, SubmittedAt: now}, nil
}

// Balance returns the balance of account in base units.
func (s *LoanStore) Balance(ctx context.Context, account domain.Address) (*big.Int, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var doc accountDoc
	err := s.accounts.FindOne(ctx, bson.M{"_id": account.Lower().String()}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return new(big.Int).Set(s.initial), nil
		}
		return nil, fmt.Errorf("%w: balance: %w", domain.ErrStoreUnavailable, err)
	}
	delta, err := fromDecimal(doc.Delta)
	if err != nil {
		return nil, fmt.Errorf("balance of %s: %w", account, err)
	}
	return delta.Add(delta, s.initial), nil
}

// SubmitTransfer moves value between two accounts. The debit is a single
// conditional update, so concurrent transfers cannot overdraw the sender.
func (s *LoanStore) SubmitTransfer(ctx context.Context, t domain.NewTransfer) (*domain.TransactionResult, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	txHash := domain.TxHash("send", t.From.Lower().String(), t.To.Lower().String(), t.Amount.String(), now.Format(time.RFC3339Nano))

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if err := s.debit(ctx, t.From, t.Amount); err != nil {
		return nil, err
	}
	if err := s.credit(ctx, t.To, t.Amount); err != nil {
		s.refund(ctx, t.From, t.Amount)
		return nil, err
	}
	s.recordTransfer(ctx, transferDoc{
		Kind:   "send",
		From:   t.From.Lower().String(),
		To:     t.To.Lower().String(),
		Amount: t.Amount.String(),
		TxHash: txHash,
		At:     now,
	})

	return &domain.TransactionResult{TxHash: txHash, From: t.From, SubmittedAt: now}, nil
}

// debit lowers the balance of account by amount unless that would make it
// negative. An account without a document starts at the initial balance; it
// is inserted only when that balance covers the amount, and a duplicate key
// on the upsert means the existing document did not.
func (s *LoanStore) debit(ctx context.Context, account domain.Address, amount *big.Int) error {
	threshold := new(big.Int).Sub(amount, s.initial)
	minDelta, err := toDecimal(threshold)
	if err != nil {
		return err
	}
	dec, err := toDecimal(new(big.Int).Neg(amount))
	if err != nil {
		return err
	}

	opts := options.Update()
	if threshold.Sign() <= 0 {
		opts.SetUpsert(true)
	}
	res, err := s.accounts.UpdateOne(ctx,
		bson.M{"_id": account.Lower().String(), "delta": bson.M{"$gte": minDelta}},
		bson.M{"$inc": bson.M{"delta": dec}},
		opts,
	)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrInsufficientFunds
		}
		return fmt.Errorf("debit %s: %w", account, err)
	}
	if res.MatchedCount == 0 && res.UpsertedCount == 0 {
		return domain.ErrInsufficientFunds
	}
	return nil
}

func (s *LoanStore) credit(ctx context.Context, account domain.Address, amount *big.Int) error {
	inc, err := toDecimal(amount)
	if err != nil {
		return err
	}
	_, err = s.accounts.UpdateOne(ctx,
		bson.M{"_id": account.Lower().String()},
		bson.M{"$inc": bson.M{"delta": inc}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("credit %s: %w", account, err)
	}
	return nil
}

// refund returns a debited amount after a later step failed.
func (s *LoanStore) refund(ctx context.Context, account domain.Address, amount *big.Int) {
	if err := s.credit(ctx, account, amount); err != nil {
		s.log.Error().Err(err).Str("account", account.String()).Str("amount", amount.String()).Msg("failed to refund debit")
	}
}

func (s *LoanStore) recordTransfer(ctx context.Context, doc transferDoc) {
	if _, err := s.transfers.InsertOne(ctx, doc); err != nil {
		s.log.Warn().Err(err).Str("tx", doc.TxHash).Msg("failed to record transfer")
	}
}

func (s *LoanStore) OnAppend(ctx context.Context) (ports.AppendSubscription, error) {
	if _, err := s.Deployment(ctx); err != nil {
		return nil, err
	}
	if s.feed == nil {
		return nil, fmt.Errorf("%w: no notification feed configured", domain.ErrStoreUnavailable)
	}
	return s.feed.Subscribe(ctx)
}

// toRecord converts a document. An unparsable amount yields a nil Amount,
// which the synchronizer treats as malformed.
func (s *LoanStore) toRecord(doc *loanDoc) domain.LoanRecord {
	amount, ok := new(big.Int).SetString(doc.Amount, 10)
	if !ok {
		s.log.Warn().Int("index", doc.Index).Str("amount", doc.Amount).Msg("stored amount is not an integer")
		amount = nil
	}
	return domain.LoanRecord{
		Index:        doc.Index,
		Owner:        domain.Address(doc.Owner),
		Counterparty: domain.Address(doc.Counterparty),
		Amount:       amount,
		Term:         uint64(doc.Term),
		InterestRate: uint64(doc.InterestRate),
		Issued:       doc.Issued,
	}
}

func toDecimal(v *big.Int) (primitive.Decimal128, error) {
	d, err := primitive.ParseDecimal128(v.String())
	if err != nil {
		return primitive.Decimal128{}, fmt.Errorf("%w: %s does not fit a decimal128", domain.ErrMalformedAmount, v)
	}
	return d, nil
}

func fromDecimal(d primitive.Decimal128) (*big.Int, error) {
	v, exp, err := d.BigInt()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrMalformedAmount, err)
	}
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(absInt(exp))), nil)
	if exp >= 0 {
		return v.Mul(v, scale), nil
	}
	q, r := new(big.Int).QuoRem(v, scale, new(big.Int))
	if r.Sign() != 0 {
		return nil, fmt.Errorf("%w: %s is not an integer", domain.ErrMalformedAmount, d)
	}
	return q, nil
}

func absInt(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
