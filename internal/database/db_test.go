package database

import "testing"

func TestOpen_InvalidURL(t *testing.T) {
	// sql.Openは接続しないため、DSN形式が不正でもエラーにならない場合がある。
	// 完全に空のURLでもOpen自体は成功し、Pingで初めて失敗する。
	db, err := Open("")
	if err != nil {
		t.Fatalf("Open returned unexpected error: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err == nil {
		t.Skip("ローカルにPostgreSQLが起動しているためスキップ")
	}
}

func TestNewMigrator_EmbeddedSource(t *testing.T) {
	// 埋め込みマイグレーションのソースが正しく構築できることを検証する。
	// 不正なデータベースURLの場合はソース構築後にエラーになる。
	_, err := NewMigrator("invalid://url")
	if err == nil {
		t.Fatal("不正なデータベースURLはエラーになるべき")
	}
}
