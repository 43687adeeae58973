package migrations

import _ "embed"

//go:embed 20250901000001_create_accounts.sql
var createAccountsSQL string

func init() {
	Migrations.MustRegister(
		exec(createAccountsSQL),
		exec(`DROP TABLE IF EXISTS audit_logs, ledger_entries, accounts`),
	)
}
