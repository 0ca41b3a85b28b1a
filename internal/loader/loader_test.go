package loader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/metriq/pkg/dialect"
	"github.com/leapstack-labs/metriq/pkg/types"
)

const ordersYAML = `name: orders
label: Orders
base_table: orders
tables:
  - name: orders
    sql_table: analytics.orders
    dimensions:
      - name: status
        type: string
      - name: amount
        type: number
    metrics:
      - name: revenue
        type: number
        sql: ${orders.amount}
        aggregation: sum
        drill_fields: [orders_status]
  - name: customers
    sql_table: analytics.customers
    dimensions:
      - name: customer_id
        type: number
        hidden: true
      - name: city
        type: string
joins:
  - table: customers
    type: inner
    sql_on: ${customers.city} = ${orders.status}
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "orders.yaml", ordersYAML)

	ex, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "orders", ex.Name)
	assert.Equal(t, "orders", ex.BaseTable)
	require.Len(t, ex.Tables, 2)
	assert.Equal(t, "analytics.orders", ex.Tables[0].SQLTable)

	require.Len(t, ex.Tables[0].Metrics, 1)
	m := ex.Tables[0].Metrics[0]
	assert.Equal(t, types.AggSum, m.Aggregation)
	assert.Equal(t, []string{"orders_status"}, m.DrillFields)

	assert.True(t, ex.Tables[1].Dimensions[0].Hidden)

	require.Len(t, ex.Joins, 1)
	assert.Equal(t, "customers", ex.Joins[0].Table)
	assert.Equal(t, "INNER JOIN", string(ex.Joins[0].Type))
}

func TestLoadFile_NameDefaultsToFilename(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "payments.yaml", `tables:
  - name: payments
    dimensions:
      - name: method
`)

	ex, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "payments", ex.Name)
	// Base table defaults to the first table.
	assert.Equal(t, "payments", ex.BaseTable)
}

func TestLoadFile_UnknownJoinType(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "bad.yaml", `name: bad
tables:
  - name: a
    dimensions: [{name: x}]
  - name: b
    dimensions: [{name: y}]
joins:
  - table: b
    type: sideways
    sql_on: ${b.y} = ${a.x}
`)

	_, err := LoadFile(path)
	assert.ErrorContains(t, err, "unknown join type")
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "orders.yaml", ordersYAML)
	writeFile(t, dir, "payments.yml", `name: payments
tables:
  - name: payments
    dimensions: [{name: method}]
`)
	writeFile(t, dir, "notes.txt", "ignored")

	explores, err := LoadDir(dir)
	require.NoError(t, err)
	require.Len(t, explores, 2)
	// Sorted by file name.
	assert.Equal(t, "orders", explores[0].Name)
	assert.Equal(t, "payments", explores[1].Name)
}

func TestLoadDir_DuplicateExplore(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.yaml", "name: orders\ntables:\n  - name: orders\n    dimensions: [{name: x}]\n")
	writeFile(t, dir, "b.yaml", "name: orders\ntables:\n  - name: orders\n    dimensions: [{name: x}]\n")

	_, err := LoadDir(dir)
	assert.ErrorContains(t, err, `explore "orders" defined in both`)
}

func TestStore_ReloadAndSnapshot(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "orders.yaml", ordersYAML)

	d := dialect.NewDialect("test").WithStandardAggregates().Build()
	store := NewStore(dir, d, nil)
	assert.Nil(t, store.Snapshot())

	require.NoError(t, store.Reload())
	snap := store.Snapshot()
	require.NotNil(t, snap)
	assert.Equal(t, []string{"orders"}, snap.Explores())

	cat, err := snap.Catalog("orders")
	require.NoError(t, err)
	_, err = cat.Resolve("orders_revenue")
	require.NoError(t, err)

	_, err = snap.Catalog("ghost")
	assert.ErrorContains(t, err, "unknown explore")
}

func TestStore_FailedReloadKeepsOldSnapshot(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "orders.yaml", ordersYAML)

	d := dialect.NewDialect("test").WithStandardAggregates().Build()
	store := NewStore(dir, d, nil)
	require.NoError(t, store.Reload())
	old := store.Snapshot()

	// A broken definition must not replace the working snapshot.
	writeFile(t, dir, "orders.yaml", "name: orders\ntables:\n  - name: orders\n    metrics:\n      - name: broken\n        sql: ${orders.ghost}\n        aggregation: sum\n")
	require.Error(t, store.Reload())
	assert.Same(t, old, store.Snapshot())
}

func TestStore_ReloadPicksUpNewExplores(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "orders.yaml", ordersYAML)

	d := dialect.NewDialect("test").WithStandardAggregates().Build()
	store := NewStore(dir, d, nil)
	require.NoError(t, store.Reload())

	writeFile(t, dir, "payments.yaml", `name: payments
tables:
  - name: payments
    dimensions: [{name: method}]
`)
	require.NoError(t, store.Reload())
	assert.Equal(t, []string{"orders", "payments"}, store.Snapshot().Explores())
}
