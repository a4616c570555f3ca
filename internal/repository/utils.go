package repository

import "database/sql"

type rowScanner interface {
	Scan(dest ...any) error
}

func nullable(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}
