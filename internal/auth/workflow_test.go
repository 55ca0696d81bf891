// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyward Contributors

package auth_test

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/keyward/keyward/internal/auth"
	"github.com/keyward/keyward/internal/auth/memory"
)

var _ = Describe("Auth workflow", func() {
	var (
		ctx      context.Context
		accounts *memory.AccountStore
		issuer   *auth.JWTIssuer
		svc      *auth.Service
	)

	BeforeEach(func() {
		ctx = context.Background()
		accounts = memory.NewAccountStore()

		hasher, err := auth.NewArgon2idHasher(auth.MinArgon2Params)
		Expect(err).NotTo(HaveOccurred())

		issuer, err = auth.NewJWTIssuer(auth.JWTConfig{
			SigningKey: []byte("workflow-suite-signing-key-0123456789"),
			Issuer:     "keyward",
			TTL:        time.Hour,
		})
		Expect(err).NotTo(HaveOccurred())

		svc, err = auth.NewService(accounts, hasher, issuer)
		Expect(err).NotTo(HaveOccurred())
	})

	register := func(email, name, password string) (*auth.Session, error) {
		return svc.Register(ctx, auth.RegisterInput{Email: email, Name: name, Password: password})
	}

	Describe("register then login", func() {
		It("returns the same account with a verifiable token", func() {
			registered, err := register("a@x.com", "Ana", "password1")
			Expect(err).NotTo(HaveOccurred())
			Expect(registered.Account.Email).To(Equal("a@x.com"))
			Expect(registered.Account.Name).To(Equal("Ana"))
			Expect(registered.Token).NotTo(BeEmpty())

			claims, err := issuer.Verify(registered.Token)
			Expect(err).NotTo(HaveOccurred())
			Expect(claims.Subject).To(Equal(registered.Account.ID))

			loggedIn, err := svc.Login(ctx, "a@x.com", "password1")
			Expect(err).NotTo(HaveOccurred())
			Expect(loggedIn.Account.ID).To(Equal(registered.Account.ID))
			Expect(loggedIn.Account.Email).To(Equal("a@x.com"))
			Expect(loggedIn.Account.Name).To(Equal("Ana"))

			claims, err = svc.VerifyToken(ctx, loggedIn.Token)
			Expect(err).NotTo(HaveOccurred())
			Expect(claims.Subject).To(Equal(registered.Account.ID))
		})

		It("rejects a wrong password", func() {
			_, err := register("a@x.com", "Ana", "password1")
			Expect(err).NotTo(HaveOccurred())

			_, err = svc.Login(ctx, "a@x.com", "wrong")
			Expect(auth.KindOf(err)).To(Equal(auth.KindInvalidCredentials))
		})
	})

	Describe("enumeration resistance", func() {
		It("fails unknown email and wrong password identically", func() {
			_, err := register("a@x.com", "Ana", "password1")
			Expect(err).NotTo(HaveOccurred())

			_, unknown := svc.Login(ctx, "nobody@x.com", "password1")
			_, wrong := svc.Login(ctx, "a@x.com", "password2")

			Expect(auth.KindOf(unknown)).To(Equal(auth.KindInvalidCredentials))
			Expect(auth.KindOf(wrong)).To(Equal(auth.KindInvalidCredentials))
			Expect(unknown.Error()).To(Equal(wrong.Error()))
		})
	})

	Describe("uniqueness", func() {
		It("rejects a second registration and leaves the first intact", func() {
			first, err := register("a@x.com", "Ana", "password1")
			Expect(err).NotTo(HaveOccurred())

			_, err = register("a@x.com", "Other", "password2")
			Expect(auth.KindOf(err)).To(Equal(auth.KindDuplicateAccount))

			session, err := svc.Login(ctx, "a@x.com", "password1")
			Expect(err).NotTo(HaveOccurred())
			Expect(session.Account.ID).To(Equal(first.Account.ID))
			Expect(session.Account.Name).To(Equal("Ana"))

			_, err = svc.Login(ctx, "a@x.com", "password2")
			Expect(auth.KindOf(err)).To(Equal(auth.KindInvalidCredentials))
		})

		It("admits exactly one of many concurrent registrations", func() {
			const n = 8
			var wg sync.WaitGroup
			kinds := make(chan auth.Kind, n)
			for range n {
				wg.Add(1)
				go func() {
					defer GinkgoRecover()
					defer wg.Done()
					_, err := register("race@x.com", "Racer", "password1")
					if err == nil {
						kinds <- auth.KindUnknown
						return
					}
					kinds <- auth.KindOf(err)
				}()
			}
			wg.Wait()
			close(kinds)

			var ok, dup int
			for k := range kinds {
				switch k {
				case auth.KindUnknown:
					ok++
				case auth.KindDuplicateAccount:
					dup++
				}
			}
			Expect(ok).To(Equal(1))
			Expect(dup).To(Equal(n - 1))
			Expect(accounts.Len()).To(Equal(1))
		})
	})

	Describe("password floor", func() {
		It("accepts eight characters", func() {
			_, err := register("a@x.com", "Ana", "12345678")
			Expect(err).NotTo(HaveOccurred())
		})

		It("rejects seven characters", func() {
			_, err := register("a@x.com", "Ana", "1234567")
			Expect(auth.KindOf(err)).To(Equal(auth.KindValidation))
			Expect(accounts.Len()).To(BeZero())
		})
	})

	Describe("account views", func() {
		It("never carry the password or its hash", func() {
			session, err := register("a@x.com", "Ana", "password1")
			Expect(err).NotTo(HaveOccurred())

			stored, err := accounts.GetByID(ctx, session.Account.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.PasswordHash).NotTo(Equal("password1"))

			view, err := svc.FindByID(ctx, session.Account.ID)
			Expect(err).NotTo(HaveOccurred())

			for _, v := range []any{session, view} {
				encoded, err := json.Marshal(v)
				Expect(err).NotTo(HaveOccurred())
				Expect(string(encoded)).NotTo(ContainSubstring("password"))
				Expect(string(encoded)).NotTo(ContainSubstring(stored.PasswordHash))
				Expect(string(encoded)).NotTo(ContainSubstring("$argon2id$"))
			}
		})
	})

	Describe("hostile profiles", func() {
		It("refuses a profile that smuggles a password", func() {
			_, err := svc.Register(ctx, auth.RegisterInput{
				Email:    "a@x.com",
				Name:     "Ana",
				Password: "password1",
				Profile:  map[string]any{"password": "hunter22"},
			})
			Expect(auth.KindOf(err)).To(Equal(auth.KindValidation))
			Expect(accounts.Len()).To(BeZero())
		})
	})

	Describe("listing", func() {
		It("returns every account in registration order without secrets", func() {
			for _, email := range []string{"a@x.com", "b@x.com", "c@x.com"} {
				_, err := register(email, "User", "password1")
				Expect(err).NotTo(HaveOccurred())
			}

			views, err := svc.List(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(views).To(HaveLen(3))
			Expect(views[0].Email).To(Equal("a@x.com"))
			Expect(views[2].Email).To(Equal("c@x.com"))

			encoded, err := json.Marshal(views)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(encoded)).NotTo(ContainSubstring("password"))
			Expect(string(encoded)).NotTo(ContainSubstring("$argon2id$"))
		})
	})

	Describe("not implemented operations", func() {
		It("reports update and remove as not implemented", func() {
			session, err := register("a@x.com", "Ana", "password1")
			Expect(err).NotTo(HaveOccurred())

			_, err = svc.Update(ctx, session.Account.ID, auth.UpdateInput{})
			Expect(auth.KindOf(err)).To(Equal(auth.KindNotImplemented))

			err = svc.Remove(ctx, session.Account.ID)
			Expect(auth.KindOf(err)).To(Equal(auth.KindNotImplemented))

			_, err = svc.FindByID(ctx, session.Account.ID)
			Expect(err).NotTo(HaveOccurred())
		})
	})
})

var _ = Describe("Password hasher round trip", func() {
	It("verifies the original plaintext and rejects others", func() {
		hasher, err := auth.NewArgon2idHasher(auth.MinArgon2Params)
		Expect(err).NotTo(HaveOccurred())

		for _, plaintext := range []string{"password1", "ünïcødé-pässwörd", "spaces in the middle", "x"} {
			hash, err := hasher.Hash(plaintext)
			Expect(err).NotTo(HaveOccurred())

			ok, err := hasher.Verify(plaintext, hash)
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeTrue())

			ok, err = hasher.Verify(plaintext+"!", hash)
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeFalse())
		}
	})
})
