// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Spacewire Contributors

//go:build integration

package postgres_test

import (
	"context"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/spacewire/sync/internal/ids"
	"github.com/spacewire/sync/internal/store"
	"github.com/spacewire/sync/internal/store/postgres"
)

func TestPostgresStore(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Postgres Store Integration Suite")
}

var (
	container *tcpostgres.PostgresContainer
	st        *postgres.Store
)

var _ = BeforeSuite(func() {
	ctx := context.Background()

	var err error
	container, err = tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("spacewire_test"),
		tcpostgres.WithUsername("spacewire"),
		tcpostgres.WithPassword("spacewire"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	Expect(err).NotTo(HaveOccurred())

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	Expect(err).NotTo(HaveOccurred())

	migrator, err := store.NewMigrator(connStr)
	Expect(err).NotTo(HaveOccurred())
	Expect(migrator.Up()).To(Succeed())
	_ = migrator.Close()

	st, err = postgres.New(ctx, connStr)
	Expect(err).NotTo(HaveOccurred())
})

var _ = AfterSuite(func() {
	if st != nil {
		st.Close()
	}
	if container != nil {
		_ = container.Terminate(context.Background())
	}
})

var _ = Describe("Store", func() {
	Describe("RecordEvent", func() {
		It("is idempotent for a replayed event", func() {
			ctx := context.Background()
			stream := ids.StreamId("stream-record-event")
			event := ids.NewEventId()

			err := st.InTransaction(ctx, func(ctx context.Context) error {
				inserted, err := st.RecordEvent(ctx, stream, event, 1)
				Expect(err).NotTo(HaveOccurred())
				Expect(inserted).To(BeTrue())

				inserted, err = st.RecordEvent(ctx, stream, event, 1)
				Expect(err).NotTo(HaveOccurred())
				Expect(inserted).To(BeFalse(), "replaying the same event must be a no-op")
				return nil
			})
			Expect(err).NotTo(HaveOccurred())

			has, err := st.HasEvent(ctx, stream, event)
			Expect(err).NotTo(HaveOccurred())
			Expect(has).To(BeTrue())
		})
	})

	Describe("Apply", func() {
		It("upserts by primary key and then deletes the row", func() {
			ctx := context.Background()
			mut := store.Mutation{
				Table: "profiles",
				PK:    map[string]any{"user_id": "apply-alice"},
				Set:   map[string]any{"display_name": "Alice", "avatar_url": ""},
			}
			Expect(st.Apply(ctx, mut)).To(Succeed())

			row, err := st.LiveQuery(ctx, `SELECT display_name FROM profiles WHERE user_id = $1`, "apply-alice")
			Expect(err).NotTo(HaveOccurred())
			Expect(row.Values).To(HaveLen(1))
			Expect(row.Values[0]).To(Equal("Alice"))

			del := store.Mutation{Table: "profiles", PK: map[string]any{"user_id": "apply-alice"}}
			Expect(st.Apply(ctx, del)).To(Succeed())

			row, err = st.LiveQuery(ctx, `SELECT display_name FROM profiles WHERE user_id = $1`, "apply-alice")
			Expect(err).NotTo(HaveOccurred())
			Expect(row.Values).To(BeNil(), "deleted row must not be returned")
		})
	})

	Describe("InSavepoint", func() {
		It("isolates one event's failure from the enclosing transaction", func() {
			ctx := context.Background()
			stream := ids.StreamId("stream-savepoint")
			good := ids.NewEventId()

			err := st.InTransaction(ctx, func(ctx context.Context) error {
				_, err := st.RecordEvent(ctx, stream, good, 1)
				Expect(err).NotTo(HaveOccurred())

				spErr := st.InSavepoint(ctx, func(ctx context.Context) error {
					return st.Apply(ctx, store.Mutation{
						Table: "does_not_exist",
						PK:    map[string]any{"id": "x"},
						Set:   map[string]any{"v": 1},
					})
				})
				Expect(spErr).To(HaveOccurred())
				return nil
			})
			Expect(err).NotTo(HaveOccurred())

			has, err := st.HasEvent(ctx, stream, good)
			Expect(err).NotTo(HaveOccurred())
			Expect(has).To(BeTrue(), "outer transaction must still commit despite the savepoint failure")
		})
	})

	Describe("Cursor", func() {
		It("never regresses on an out-of-order advance", func() {
			ctx := context.Background()
			stream := ids.StreamId("stream-cursor")

			Expect(st.AdvanceCursor(ctx, stream, 5)).To(Succeed())
			Expect(st.AdvanceCursor(ctx, stream, 2)).To(Succeed())

			idx, err := st.Cursor(ctx, stream)
			Expect(err).NotTo(HaveOccurred())
			Expect(idx).To(BeEquivalentTo(5))
		})
	})
})
