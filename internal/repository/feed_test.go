package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShanmugaRamana/ProjectRakshak-V1/internal/domain"
)

type fakeNotificationConn struct {
	execs         []string
	execErr       error
	notifications []*pgconn.Notification
	waitErr       error
}

func (c *fakeNotificationConn) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	c.execs = append(c.execs, sql)
	return pgconn.CommandTag{}, c.execErr
}

func (c *fakeNotificationConn) WaitForNotification(ctx context.Context) (*pgconn.Notification, error) {
	if len(c.notifications) == 0 {
		if c.waitErr != nil {
			return nil, c.waitErr
		}
		<-ctx.Done()
		return nil, ctx.Err()
	}
	n := c.notifications[0]
	c.notifications = c.notifications[1:]
	return n, nil
}

type fakePersons struct {
	records map[string]*domain.PersonRecord
	err     error
}

func (f *fakePersons) ListSearching(ctx context.Context) ([]domain.PersonRecord, error) {
	return nil, nil
}

func (f *fakePersons) GetByID(ctx context.Context, id string) (*domain.PersonRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	if p, ok := f.records[id]; ok {
		return p, nil
	}
	return nil, domain.ErrPersonNotFound
}

func TestSubscription_Next(t *testing.T) {
	conn := &fakeNotificationConn{
		notifications: []*pgconn.Notification{
			{Channel: "other", Payload: personA},
			{Channel: PersonInsertedChannel, Payload: "deleted-person"},
			{Channel: PersonInsertedChannel, Payload: personA},
			{Channel: PersonInsertedChannel, Payload: personB},
		},
	}
	persons := &fakePersons{records: map[string]*domain.PersonRecord{
		personA: {ID: personA, FullName: "Asha"},
		personB: {ID: personB, FullName: "Ravi"},
	}}

	released := false
	sub, err := newSubscription(context.Background(), conn, persons, func() { released = true })
	require.NoError(t, err)
	assert.Equal(t, []string{`LISTEN "person_inserted"`}, conn.execs)

	first, err := sub.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, personA, first.ID)

	second, err := sub.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, personB, second.ID)

	sub.Close(context.Background())
	assert.True(t, released)
	assert.Equal(t, "UNLISTEN *", conn.execs[len(conn.execs)-1])

	// closing twice is harmless
	sub.Close(context.Background())
}

func TestSubscription_Errors(t *testing.T) {
	t.Run("listen failure", func(t *testing.T) {
		conn := &fakeNotificationConn{execErr: errors.New("conn closed")}

		_, err := newSubscription(context.Background(), conn, &fakePersons{}, func() {})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "listen person_inserted")
	})

	t.Run("connection lost", func(t *testing.T) {
		conn := &fakeNotificationConn{waitErr: errors.New("unexpected EOF")}
		sub, err := newSubscription(context.Background(), conn, &fakePersons{}, func() {})
		require.NoError(t, err)

		_, err = sub.Next(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "wait for notification")
	})

	t.Run("lookup failure", func(t *testing.T) {
		conn := &fakeNotificationConn{notifications: []*pgconn.Notification{
			{Channel: PersonInsertedChannel, Payload: personA},
		}}
		sub, err := newSubscription(context.Background(), conn, &fakePersons{err: errors.New("db down")}, func() {})
		require.NoError(t, err)

		_, err = sub.Next(context.Background())
		assert.EqualError(t, err, "db down")
	})

	t.Run("context canceled", func(t *testing.T) {
		conn := &fakeNotificationConn{}
		sub, err := newSubscription(context.Background(), conn, &fakePersons{}, func() {})
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err = sub.Next(ctx)
		assert.ErrorIs(t, err, context.Canceled)
	})
}
