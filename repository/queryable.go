package repository

import (
	"context"
	"fmt"

	"betledger/database"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

// queryable is satisfied by both *pgxpool.Pool and pgx.Tx
type queryable interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// addressParam encodes an identity the way it is stored
func addressParam(a common.Address) string {
	return a.Hex()
}

func parseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid stored address %q", s)
	}
	return common.HexToAddress(s), nil
}

func parseNullableAddress(s *string) (*common.Address, error) {
	if s == nil {
		return nil, nil
	}
	a, err := parseAddress(*s)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// scanAmounts converts scanned NUMERIC columns into wei amounts
func scanAmounts(pairs map[*pgtype.Numeric]**uint256.Int) error {
	for n, dst := range pairs {
		v, err := database.Uint256(*n)
		if err != nil {
			return err
		}
		*dst = v
	}
	return nil
}
