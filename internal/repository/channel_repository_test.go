package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/radio-slot-reservation/internal/model"
)

func TestChannelRepo_ListChannels(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name, is_active FROM channels WHERE is_active = 1 ORDER BY id")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "is_active"}).
			AddRow(int64(1), "TRT FM", true).
			AddRow(int64(2), "RADIOSCOPE", true))

	got, err := NewChannelRepo(db).ListChannels(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, []model.Channel{{ID: 1, Name: "TRT FM", IsActive: true}, {ID: 2, Name: "RADIOSCOPE", IsActive: true}}, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestChannelRepo_ChannelPricesOverride(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM channel_prices")).
		WithArgs(2026, "Muratbey").
		WillReturnRows(sqlmock.NewRows([]string{"channel_id", "advertiser_name", "month", "price_dt", "price_odt"}).
			AddRow(int64(1), "", 1, "10.00", "5.00").
			AddRow(int64(1), "", 2, "11.00", "6.00").
			AddRow(int64(2), "", 1, "8.00", "4.00").
			AddRow(int64(1), "Muratbey", 1, "9.50", "4.50"))

	table, err := NewChannelRepo(db).ChannelPrices(context.Background(), 2026, " Muratbey ")
	require.NoError(t, err)
	require.Len(t, table, 3)

	jan := table[model.PriceKey{ChannelID: 1, Month: time.January}]
	assert.True(t, decimal.RequireFromString("9.5").Equal(jan.DT))
	assert.True(t, decimal.RequireFromString("4.5").Equal(jan.ODT))
	feb := table[model.PriceKey{ChannelID: 1, Month: time.February}]
	assert.True(t, decimal.NewFromInt(11).Equal(feb.DT))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestChannelRepo_UpsertChannelPrice(t *testing.T) {
	upsert := regexp.QuoteMeta("INSERT INTO channel_prices")

	t.Run("negative rates are clamped", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectExec(upsert).
			WithArgs(int64(1), "", 2026, 3, decimal.Zero, decimal.NewFromInt(7)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := NewChannelRepo(db).UpsertChannelPrice(context.Background(), model.ChannelPrice{
			ChannelID: 1, Year: 2026, Month: time.March,
			DTRate: decimal.NewFromInt(-3), ODTRate: decimal.NewFromInt(7),
		})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown channel", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectExec(upsert).WillReturnError(&mysql.MySQLError{Number: 1452, Message: "foreign key"})

		err := NewChannelRepo(db).UpsertChannelPrice(context.Background(), model.ChannelPrice{ChannelID: 99, Year: 2026, Month: time.March})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("other errors pass through", func(t *testing.T) {
		db, mock := newMock(t)
		boom := errors.New("connection reset")
		mock.ExpectExec(upsert).WillReturnError(boom)

		err := NewChannelRepo(db).UpsertChannelPrice(context.Background(), model.ChannelPrice{ChannelID: 1, Year: 2026, Month: time.March})
		assert.ErrorIs(t, err, boom)
	})
}

func TestAccessRepo_AccessRatio(t *testing.T) {
	q := regexp.QuoteMeta("SELECT ratio FROM channel_access")

	t.Run("latest value", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectQuery(q).WithArgs("TRT FM", "07-10").
			WillReturnRows(sqlmock.NewRows([]string{"ratio"}).AddRow(0.42))

		got, err := NewAccessRepo(db).AccessRatio(context.Background(), "trt fm", " 07-10 ")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.InDelta(t, 0.42, *got, 1e-9)
	})

	t.Run("nothing recorded", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectQuery(q).WillReturnRows(sqlmock.NewRows([]string{"ratio"}))

		got, err := NewAccessRepo(db).AccessRatio(context.Background(), "RADIOSCOPE", "20-24")
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}

func TestAdvertiserRepo_Search(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT name FROM advertisers WHERE name LIKE ? ORDER BY name LIMIT ?")).
		WithArgs(`%50\%%`, 20).
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("Yüzde 50% İndirim"))

	repo := NewAdvertiserRepo(db)
	got, err := repo.Search(context.Background(), "50%", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"Yüzde 50% İndirim"}, got)

	blank, err := repo.Search(context.Background(), "  ", 5)
	require.NoError(t, err)
	assert.Empty(t, blank)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepo_GetByEmail(t *testing.T) {
	cols := []string{"id", "email", "full_name", "password_hash", "role", "is_active", "created_at"}
	q := regexp.QuoteMeta("FROM users WHERE email=?")

	db, mock := newMock(t)
	mock.ExpectQuery(q).WithArgs("ayse@example.com").
		WillReturnRows(sqlmock.NewRows(cols).AddRow(int64(3), "ayse@example.com", "Ayşe", "hash", model.RolePlanner, true, createdAt))
	mock.ExpectQuery(q).WithArgs("nobody@example.com").WillReturnRows(sqlmock.NewRows(cols))

	repo := NewUserRepo(db)
	u, err := repo.GetByEmail(context.Background(), " Ayse@Example.com ")
	require.NoError(t, err)
	assert.Equal(t, "Ayşe", u.FullName)
	assert.Equal(t, model.RolePlanner, u.Role)

	_, err = repo.GetByEmail(context.Background(), "nobody@example.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUserRepo_CreateDuplicate(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})

	_, err := NewUserRepo(db).Create(context.Background(), "a@b.c", "A", "secret-pass", model.RoleViewer, 4)
	assert.ErrorIs(t, err, ErrEmailExists)
}
