// Package sqlite предоставляет инфраструктуру SQLite для локального зеркала заметок.
//
// Основные возможности:
// - Открытие файловой или in-memory базы с PRAGMA настройками
// - Встроенные миграции (embed.FS) через golang-migrate
// - Транзакции с ретраями на SQLITE_BUSY
//
// # Быстрый старт
//
//	db, err := sqlite.NewDB(ctx, "data/mirror.db")
//	if err != nil {
//		return err
//	}
//	defer db.Close()
//
//	if err := sqlite.ApplyMigrations(db, migrations, "migrations/sqlite"); err != nil {
//		return err
//	}
//
//	runner := sqlite.NewTxRunner(db)
//	err = runner.WithinTx(ctx, func(ctx context.Context) error {
//		_, err := runner.GetQuerier(ctx).ExecContext(ctx, "DELETE FROM notes")
//		return err
//	})
package sqlite
