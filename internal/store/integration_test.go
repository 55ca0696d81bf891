// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyward Contributors

//go:build integration

package store_test

import (
	"context"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/keyward/keyward/internal/auth"
	"github.com/keyward/keyward/internal/auth/postgres"
	"github.com/keyward/keyward/internal/store"
)

var _ = Describe("Migrator", Ordered, func() {
	var migrator *store.Migrator

	BeforeAll(func() {
		var err error
		migrator, err = store.NewMigrator(databaseURL)
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(func() { _ = migrator.Close() })
		Expect(migrator.Down()).To(Succeed())
	})

	It("starts empty", func() {
		status, err := migrator.Status()
		Expect(err).NotTo(HaveOccurred())
		Expect(status.Version).To(BeZero())
		Expect(status.Pending).NotTo(BeEmpty())
	})

	It("applies, rolls back and reapplies", func() {
		Expect(migrator.Up()).To(Succeed())
		status, err := migrator.Status()
		Expect(err).NotTo(HaveOccurred())
		Expect(status.Pending).To(BeEmpty())
		Expect(status.Dirty).To(BeFalse())

		Expect(migrator.Up()).To(Succeed(), "second Up is a no-op")

		Expect(migrator.Down()).To(Succeed())
		version, _, err := migrator.Version()
		Expect(err).NotTo(HaveOccurred())
		Expect(version).To(BeZero())

		Expect(migrator.Up()).To(Succeed())
	})
})

var _ = Describe("AccountRepository", Ordered, func() {
	var (
		ctx  context.Context
		pool *pgxpool.Pool
		repo *postgres.AccountRepository
	)

	BeforeAll(func() {
		ctx = context.Background()

		migrator, err := store.NewMigrator(databaseURL)
		Expect(err).NotTo(HaveOccurred())
		Expect(migrator.Up()).To(Succeed())
		Expect(migrator.Close()).To(Succeed())

		pool, err = store.Connect(ctx, databaseURL)
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(pool.Close)

		repo = postgres.NewAccountRepository(pool)
	})

	AfterEach(func() {
		_, err := pool.Exec(ctx, `DELETE FROM accounts`)
		Expect(err).NotTo(HaveOccurred())
	})

	It("creates and reads back an account", func() {
		created, err := repo.Create(ctx, auth.NewAccount{
			Email:        "a@x.com",
			Name:         "Ana",
			PasswordHash: "hash",
			Profile:      map[string]any{"locale": "pt"},
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(created.CreatedAt).NotTo(BeZero())
		Expect(created.Profile).To(HaveKeyWithValue("locale", "pt"))

		byEmail, err := repo.GetByEmail(ctx, "a@x.com")
		Expect(err).NotTo(HaveOccurred())
		Expect(byEmail.ID).To(Equal(created.ID))
		Expect(byEmail.Profile).To(HaveKeyWithValue("locale", "pt"))

		byID, err := repo.GetByID(ctx, created.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(byID.Email).To(Equal("a@x.com"))
	})

	It("returns JSONB-normalized profiles from create", func() {
		created, err := repo.Create(ctx, auth.NewAccount{
			Email:        "n@x.com",
			Name:         "Num",
			PasswordHash: "hash",
			Profile:      map[string]any{"age": 30},
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(created.Profile).To(HaveKeyWithValue("age", float64(30)))
	})

	It("lists accounts oldest first", func() {
		accounts, err := repo.List(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(accounts).To(BeEmpty())

		for _, email := range []string{"a@x.com", "b@x.com", "c@x.com"} {
			_, err := repo.Create(ctx, auth.NewAccount{Email: email, Name: "User", PasswordHash: "hash"})
			Expect(err).NotTo(HaveOccurred())
		}

		accounts, err = repo.List(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(accounts).To(HaveLen(3))
		Expect(accounts[0].Email).To(Equal("a@x.com"))
		Expect(accounts[1].Email).To(Equal("b@x.com"))
		Expect(accounts[2].Email).To(Equal("c@x.com"))
	})

	It("reports missing accounts as not found", func() {
		_, err := repo.GetByEmail(ctx, "nobody@x.com")
		Expect(err).To(MatchError(auth.ErrNotFound))

		_, err = repo.GetByID(ctx, "missing")
		Expect(err).To(MatchError(auth.ErrNotFound))
	})

	It("admits one of many concurrent creates for the same email", func() {
		const n = 10
		var wg sync.WaitGroup
		results := make(chan error, n)
		for range n {
			wg.Add(1)
			go func() {
				defer GinkgoRecover()
				defer wg.Done()
				_, err := repo.Create(ctx, auth.NewAccount{Email: "race@x.com", Name: "Racer", PasswordHash: "hash"})
				results <- err
			}()
		}
		wg.Wait()
		close(results)

		var created, duplicates int
		for err := range results {
			if err == nil {
				created++
				continue
			}
			Expect(err).To(MatchError(auth.ErrDuplicateKey))
			duplicates++
		}
		Expect(created).To(Equal(1))
		Expect(duplicates).To(Equal(n - 1))
	})
})
