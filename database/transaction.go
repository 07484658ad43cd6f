package database

import (
	"github.com/jackc/pgx/v5"
)

// WriteTxOptions are used by every mutating operation. Row locks taken with
// SELECT ... FOR UPDATE serialize writers on the same activity.
var WriteTxOptions = pgx.TxOptions{
	IsoLevel:   pgx.ReadCommitted,
	AccessMode: pgx.ReadWrite,
}

// SnapshotTxOptions are used for read-only views that span several statements.
// Every statement in the transaction observes the same committed state.
var SnapshotTxOptions = pgx.TxOptions{
	IsoLevel:   pgx.RepeatableRead,
	AccessMode: pgx.ReadOnly,
}
