package migrations

import _ "embed"

//go:embed 20250901000002_create_quizzes.sql
var createQuizzesSQL string

func init() {
	Migrations.MustRegister(
		exec(createQuizzesSQL),
		exec(`DROP TABLE IF EXISTS quiz_attempts, quizzes`),
	)
}
