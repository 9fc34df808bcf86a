package postgres

import (
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// チャンクテーブルの列値と Go の型の相互変換

func chunkIDParam(id uuid.UUID) pgtype.UUID {
	return pgtype.UUID{Bytes: id, Valid: id != uuid.Nil}
}

func chunkIDValue(id pgtype.UUID) uuid.UUID {
	if !id.Valid {
		return uuid.Nil
	}
	return id.Bytes
}

func int4Param(i int) pgtype.Int4 {
	return pgtype.Int4{Int32: int32(i), Valid: true}
}

func int4Value(i pgtype.Int4) int {
	if !i.Valid {
		return 0
	}
	return int(i.Int32)
}
