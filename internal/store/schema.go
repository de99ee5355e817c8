package store

const schemaVersion = 1

const schemaSQL = `
PRAGMA foreign_keys = ON;
CREATE TABLE IF NOT EXISTS store_meta (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS users (
	id TEXT PRIMARY KEY,
	username TEXT NOT NULL UNIQUE,
	roles TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS test_plan_versions (
	id TEXT PRIMARY KEY,
	test_plan_id TEXT NOT NULL,
	title TEXT NOT NULL,
	directory TEXT NOT NULL,
	git_sha TEXT NOT NULL,
	updated_at INTEGER NOT NULL,
	tests_json TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_versions_test_plan ON test_plan_versions(test_plan_id);
CREATE TABLE IF NOT EXISTS test_plan_reports (
	id TEXT PRIMARY KEY,
	test_plan_version_id TEXT NOT NULL REFERENCES test_plan_versions(id),
	at_id TEXT NOT NULL,
	browser_id TEXT NOT NULL,
	status TEXT NOT NULL,
	vendor_review_status TEXT,
	created_at INTEGER NOT NULL,
	candidate_status_reached_at INTEGER,
	recommended_status_target_date INTEGER,
	recommended_status_reached_at INTEGER,
	UNIQUE(test_plan_version_id, at_id, browser_id)
);
CREATE INDEX IF NOT EXISTS idx_reports_status ON test_plan_reports(status);
CREATE TABLE IF NOT EXISTS test_plan_runs (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	id TEXT NOT NULL UNIQUE,
	test_plan_report_id TEXT NOT NULL REFERENCES test_plan_reports(id) ON DELETE CASCADE,
	tester_id TEXT NOT NULL REFERENCES users(id),
	created_at INTEGER NOT NULL,
	UNIQUE(test_plan_report_id, tester_id)
);
CREATE TABLE IF NOT EXISTS test_results (
	id TEXT PRIMARY KEY,
	test_plan_run_id TEXT NOT NULL REFERENCES test_plan_runs(id) ON DELETE CASCADE,
	test_index INTEGER NOT NULL,
	test_id TEXT NOT NULL,
	state_json TEXT,
	scenario_results_json TEXT NOT NULL,
	issues_json TEXT NOT NULL,
	submitted_at INTEGER,
	updated_at INTEGER NOT NULL,
	UNIQUE(test_plan_run_id, test_index)
);
CREATE TABLE IF NOT EXISTS issues (
	id TEXT PRIMARY KEY,
	test_plan_run_id TEXT NOT NULL REFERENCES test_plan_runs(id) ON DELETE CASCADE,
	test_index INTEGER NOT NULL,
	title TEXT NOT NULL,
	link TEXT NOT NULL,
	author TEXT NOT NULL,
	feedback_type TEXT NOT NULL,
	closed INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_issues_run ON issues(test_plan_run_id, test_index);
CREATE TABLE IF NOT EXISTS viewers (
	test_plan_version_id TEXT NOT NULL REFERENCES test_plan_versions(id) ON DELETE CASCADE,
	test_id TEXT NOT NULL,
	user_id TEXT NOT NULL REFERENCES users(id),
	PRIMARY KEY(test_plan_version_id, test_id, user_id)
);
`

const metaKeySchemaVersion = "schema_version"
