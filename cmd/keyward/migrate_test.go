// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyward Contributors

package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keyward/keyward/internal/config"
	"github.com/keyward/keyward/internal/store"
	"github.com/keyward/keyward/pkg/errutil"
)

type fakeMigrator struct {
	calls   []string
	version uint
	dirty   bool
	forced  int
	err     error
	closed  bool
}

func (f *fakeMigrator) Up() error {
	f.calls = append(f.calls, "up")
	return f.err
}

func (f *fakeMigrator) Down() error {
	f.calls = append(f.calls, "down")
	return f.err
}

func (f *fakeMigrator) Version() (uint, bool, error) {
	f.calls = append(f.calls, "version")
	return f.version, f.dirty, f.err
}

func (f *fakeMigrator) Force(v int) error {
	f.calls = append(f.calls, "force")
	f.forced = v
	return f.err
}

func (f *fakeMigrator) Status() (store.Status, error) {
	f.calls = append(f.calls, "status")
	return store.Status{Version: f.version, Dirty: f.dirty, Pending: []uint{2}}, f.err
}

func (f *fakeMigrator) Close() error {
	f.closed = true
	return nil
}

func runMigrate(t *testing.T, m *fakeMigrator, args ...string) (string, error) {
	t.Helper()
	t.Setenv(config.EnvSigningKey, testSigningKey)
	t.Setenv(config.EnvDatabaseURL, "postgres://localhost/keyward")

	var gotURL string
	deps := &Deps{
		MigratorFactory: func(databaseURL string) (SchemaMigrator, error) {
			gotURL = databaseURL
			return m, nil
		},
	}

	var out bytes.Buffer
	cmd := NewRootCmd(deps)
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"migrate"}, args...))
	err := cmd.Execute()
	if err == nil {
		assert.Equal(t, "postgres://localhost/keyward", gotURL)
	}
	return out.String(), err
}

func TestMigrateUpDown(t *testing.T) {
	m := &fakeMigrator{}
	out, err := runMigrate(t, m, "up")
	require.NoError(t, err)
	assert.Contains(t, out, "Migrations completed successfully")

	out, err = runMigrate(t, m, "down")
	require.NoError(t, err)
	assert.Contains(t, out, "Migrations rolled back")

	assert.Equal(t, []string{"up", "down"}, m.calls)
	assert.True(t, m.closed)
}

func TestMigrateVersion(t *testing.T) {
	out, err := runMigrate(t, &fakeMigrator{version: 1, dirty: true}, "version")
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.InDelta(t, 1, got["version"], 0)
	assert.Equal(t, true, got["dirty"])
}

func TestMigrateStatus(t *testing.T) {
	out, err := runMigrate(t, &fakeMigrator{version: 1}, "status")
	require.NoError(t, err)

	var got store.Status
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, store.Status{Version: 1, Pending: []uint{2}}, got)
}

func TestMigrateForce(t *testing.T) {
	m := &fakeMigrator{}
	out, err := runMigrate(t, m, "force", "3")
	require.NoError(t, err)
	assert.Equal(t, 3, m.forced)
	assert.Contains(t, out, "Forced schema version 3")

	_, err = runMigrate(t, &fakeMigrator{}, "force", "abc")
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "INVALID_VERSION")
}

func TestMigrate_PropagatesMigratorErrors(t *testing.T) {
	m := &fakeMigrator{err: oops.Code("MIGRATION_UP_FAILED").Wrap(errors.New("boom"))}
	_, err := runMigrate(t, m, "up")
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "MIGRATION_UP_FAILED")
	assert.True(t, m.closed)
}

func TestMigrate_RequiresDatabaseURL(t *testing.T) {
	t.Setenv(config.EnvSigningKey, testSigningKey)
	t.Setenv(config.EnvDatabaseURL, "")

	cmd := NewRootCmd(&Deps{
		MigratorFactory: func(string) (SchemaMigrator, error) {
			t.Fatal("migrator must not be opened without a database URL")
			return nil, nil
		},
	})
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetArgs([]string{"--store", "memory", "migrate", "up"})

	err := cmd.Execute()
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "CONFIG_INVALID")
	errutil.AssertErrorContext(t, err, "field", "database_url")
}

func TestParseForceVersion(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		wantVersion int
		wantErr     bool
	}{
		{name: "valid integer", input: "3", wantVersion: 3},
		{name: "zero is valid", input: "0", wantVersion: 0},
		{name: "non-numeric returns error", input: "abc", wantErr: true},
		{name: "float parses as integer (Sscanf stops at dot)", input: "1.5", wantVersion: 1},
		{name: "trailing chars are ignored (Sscanf stops at non-digit)", input: "3abc", wantVersion: 3},
		{name: "negative parses; the migrator rejects it", input: "-1", wantVersion: -1},
		{name: "empty string returns error", input: "", wantErr: true},
		{name: "whitespace only returns error", input: "   ", wantErr: true},
		{name: "leading whitespace is handled", input: "  42", wantVersion: 42},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			version, err := parseForceVersion(tt.input)

			if tt.wantErr {
				require.Error(t, err)
				errutil.AssertErrorCode(t, err, "INVALID_VERSION")
				assert.Equal(t, 0, version)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.wantVersion, version)
			}
		})
	}
}
