package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ShanmugaRamana/ProjectRakshak-V1/internal/domain"
)

// PersonInsertedChannel is the NOTIFY channel fired by the persons insert trigger
const PersonInsertedChannel = "person_inserted"

// notificationConn is the part of *pgx.Conn a subscription needs
type notificationConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	WaitForNotification(ctx context.Context) (*pgconn.Notification, error)
}

// PersonFeed turns insert notifications into full person records
type PersonFeed struct {
	pool    *pgxpool.Pool
	persons PersonRepositoryInterface
}

func NewPersonFeed(pool *pgxpool.Pool, persons PersonRepositoryInterface) *PersonFeed {
	return &PersonFeed{pool: pool, persons: persons}
}

// Subscribe dedicates a pooled connection to LISTEN on the insert channel.
// The subscription must be closed to return the connection.
func (f *PersonFeed) Subscribe(ctx context.Context) (*Subscription, error) {
	conn, err := f.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire listen connection: %w", err)
	}

	sub, err := newSubscription(ctx, conn.Conn(), f.persons, conn.Release)
	if err != nil {
		// the connection state is unknown after a failed LISTEN
		_ = conn.Conn().Close(ctx)
		conn.Release()
		return nil, err
	}
	return sub, nil
}

// Subscription delivers inserted persons in commit order
type Subscription struct {
	conn    notificationConn
	persons PersonRepositoryInterface
	release func()
}

func newSubscription(ctx context.Context, conn notificationConn, persons PersonRepositoryInterface, release func()) (*Subscription, error) {
	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{PersonInsertedChannel}.Sanitize()); err != nil {
		return nil, fmt.Errorf("listen %s: %w", PersonInsertedChannel, err)
	}
	return &Subscription{conn: conn, persons: persons, release: release}, nil
}

// Next blocks until a person is inserted and returns its record. Persons
// deleted before they could be read are skipped. Any other error means the
// subscription is broken and must be closed.
func (s *Subscription) Next(ctx context.Context) (*domain.PersonRecord, error) {
	for {
		n, err := s.conn.WaitForNotification(ctx)
		if err != nil {
			return nil, fmt.Errorf("wait for notification: %w", err)
		}
		if n.Channel != PersonInsertedChannel {
			continue
		}

		person, err := s.persons.GetByID(ctx, n.Payload)
		if errors.Is(err, domain.ErrPersonNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return person, nil
	}
}

// Close stops listening and returns the connection to the pool
func (s *Subscription) Close(ctx context.Context) {
	if s.release == nil {
		return
	}
	_, _ = s.conn.Exec(ctx, "UNLISTEN *")
	s.release()
	s.release = nil
}
