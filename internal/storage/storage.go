// Package storage реализует хранилище пользователей, каналов и журнала
// изменений доступа поверх database/sql. Поддерживаются MySQL
// (go-sql-driver/mysql) и PostgreSQL (pgx stdlib); запросы пишутся
// с плейсхолдерами "?" и переписываются под диалект драйвера.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	// Регистрация драйвера pgx для использования с database/sql.
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/magabrotheeeer/community-access/internal/config"
	"github.com/magabrotheeeer/community-access/internal/models"
)

// Поддерживаемые драйверы.
const (
	DriverMySQL = "mysql"
	DriverPgx   = "pgx"
)

var (
	// ErrUserNotFound возвращается, если строки пользователя нет.
	ErrUserNotFound = models.ErrUserNotFound
	// ErrUserExists возвращается при попытке создать пользователя с занятым email.
	ErrUserExists = errors.New("user already exists")
)

// Storage инкапсулирует соединение с базой данных.
type Storage struct {
	DB     *sql.DB
	driver string
}

// New открывает соединение с базой и проверяет его.
func New(ctx context.Context, cfg config.Storage) (*Storage, error) {
	const op = "storage.New"

	dsn := cfg.DSN
	switch cfg.Driver {
	case DriverMySQL:
		mc, err := mysql.ParseDSN(cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		mc.ParseTime = true
		mc.Loc = time.UTC
		dsn = mc.FormatDSN()
	case DriverPgx:
	default:
		return nil, fmt.Errorf("%s: unsupported driver %q", op, cfg.Driver)
	}

	db, err := sql.Open(cfg.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLife > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLife)
	}
	if err = db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Storage{DB: db, driver: cfg.Driver}, nil
}

// Driver возвращает имя драйвера базы.
func (s *Storage) Driver() string {
	return s.driver
}

// Ping проверяет доступность базы.
func (s *Storage) Ping(ctx context.Context) error {
	return s.DB.PingContext(ctx)
}

// Close закрывает пул соединений.
func (s *Storage) Close() error {
	return s.DB.Close()
}

func (s *Storage) rebind(query string) string {
	return rebind(s.driver, query)
}

// rebind заменяет плейсхолдеры "?" на "$n" для PostgreSQL.
func rebind(driver, query string) string {
	if driver != DriverPgx {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// isDuplicate сообщает, нарушено ли ограничение уникальности.
func isDuplicate(err error) bool {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1062
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func checkCtx(ctx context.Context, op string) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
		return nil
	}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
