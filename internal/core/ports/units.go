package ports

import "math/big"

// UnitConverter maps between integer base units and decimal display units.
type UnitConverter interface {
	ToDisplay(amount *big.Int) (string, error)
	FromDisplay(amount string) (*big.Int, error)
}
