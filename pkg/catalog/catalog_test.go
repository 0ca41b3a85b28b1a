package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/metriq/pkg/dialect"
	"github.com/leapstack-labs/metriq/pkg/types"
)

func testDialect() *dialect.Dialect {
	return dialect.NewDialect("test").WithStandardAggregates().Build()
}

// ordersExplore is the shared fixture: orders joined to customers, and
// deliveries joined through customers.
func ordersExplore() *Explore {
	return &Explore{
		Name:      "orders",
		Label:     "Orders",
		BaseTable: "orders",
		Tables: []*Table{
			{
				Name:     "orders",
				SQLTable: "analytics.orders",
				Dimensions: []FieldSpec{
					{Name: "order_id", Type: types.TypeNumber},
					{Name: "status", Type: types.TypeString},
					{Name: "customer_id", Type: types.TypeNumber, Hidden: true},
					{Name: "amount", Type: types.TypeNumber},
					{Name: "created_at", Type: types.TypeTimestamp},
				},
				Metrics: []FieldSpec{
					{Name: "count", Type: types.TypeNumber, SQL: "${TABLE}.order_id", Aggregation: types.AggCount},
					{Name: "revenue", Type: types.TypeNumber, SQL: "${orders.amount}", Aggregation: types.AggSum},
				},
			},
			{
				Name:     "customers",
				SQLTable: "analytics.customers",
				Dimensions: []FieldSpec{
					{Name: "customer_id", Type: types.TypeNumber, Hidden: true},
					{Name: "name", Type: types.TypeString},
					{Name: "city", Type: types.TypeString},
				},
				Metrics: []FieldSpec{
					{Name: "distinct_customers", Type: types.TypeNumber, SQL: "${TABLE}.customer_id", Aggregation: types.AggCountDistinct},
				},
			},
			{
				Name:     "deliveries",
				SQLTable: "analytics.deliveries",
				Dimensions: []FieldSpec{
					{Name: "courier", Type: types.TypeString},
					{Name: "customer_name", Type: types.TypeString, Hidden: true},
				},
			},
		},
		Joins: []Join{
			{Table: "customers", SQLOn: "${customers.customer_id} = ${orders.customer_id}"},
			{Table: "deliveries", Type: JoinInner, SQLOn: "${deliveries.customer_name} = ${customers.name}"},
		},
	}
}

func TestBuild_CompilesFields(t *testing.T) {
	c, err := Build(ordersExplore(), testDialect())
	require.NoError(t, err)

	status, err := c.Resolve("orders_status")
	require.NoError(t, err)
	assert.Equal(t, types.KindDimension, status.Kind)
	assert.Equal(t, `"orders"."status"`, status.CompiledSQL)
	assert.Equal(t, "Status", status.Label)
	assert.Equal(t, []string{"orders"}, status.TablesReferenced)

	count, err := c.Resolve("orders_count")
	require.NoError(t, err)
	assert.Equal(t, types.KindMetric, count.Kind)
	// Metric SQL stays unaggregated; the compiler wraps it.
	assert.Equal(t, `"orders".order_id`, count.CompiledSQL)
}

func TestBuild_ResolvesFieldReferences(t *testing.T) {
	c, err := Build(ordersExplore(), testDialect())
	require.NoError(t, err)

	// ${orders.amount} resolves to the referenced field's compiled SQL.
	revenue, err := c.Resolve("orders_revenue")
	require.NoError(t, err)
	assert.Equal(t, `"orders"."amount"`, revenue.CompiledSQL)
}

func TestBuild_DefaultSQLAndLabel(t *testing.T) {
	c, err := Build(ordersExplore(), testDialect())
	require.NoError(t, err)

	f, err := c.Resolve("customers_city")
	require.NoError(t, err)
	assert.Equal(t, `"customers"."city"`, f.CompiledSQL)
	assert.Equal(t, "City", f.Label)
}

func TestBuild_Errors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Explore)
		wantErr string
	}{
		{
			name: "duplicate field id",
			mutate: func(e *Explore) {
				e.Tables[0].Dimensions = append(e.Tables[0].Dimensions, FieldSpec{Name: "status"})
			},
			wantErr: "duplicate field id",
		},
		{
			name: "duplicate table",
			mutate: func(e *Explore) {
				e.Tables = append(e.Tables, &Table{Name: "orders"})
			},
			wantErr: "duplicate table",
		},
		{
			name:    "missing base table",
			mutate:  func(e *Explore) { e.BaseTable = "nope" },
			wantErr: "not defined",
		},
		{
			name: "unknown field reference",
			mutate: func(e *Explore) {
				e.Tables[0].Metrics[1].SQL = "${orders.ghost}"
			},
			wantErr: "does not resolve",
		},
		{
			name: "circular field reference",
			mutate: func(e *Explore) {
				e.Tables[0].Dimensions[3].SQL = "${orders.revenue}" // amount -> revenue -> amount
			},
			wantErr: "circular field reference",
		},
		{
			name: "metric without aggregation",
			mutate: func(e *Explore) {
				e.Tables[0].Metrics[0].Aggregation = ""
			},
			wantErr: "no aggregation",
		},
		{
			name: "percentile without bounds",
			mutate: func(e *Explore) {
				e.Tables[0].Metrics[0].Aggregation = types.AggPercentile
			},
			wantErr: "percentile between 0 and 1",
		},
		{
			name: "multi-path join",
			mutate: func(e *Explore) {
				e.Joins = append(e.Joins, Join{Table: "customers", SQLOn: "${customers.customer_id} = ${orders.customer_id}"})
			},
			wantErr: "more than one path",
		},
		{
			name: "unreachable table",
			mutate: func(e *Explore) {
				e.Joins = e.Joins[:1] // deliveries never joined
			},
			wantErr: "not reachable",
		},
		{
			name: "join cycle",
			mutate: func(e *Explore) {
				e.Joins[0].SQLOn = "${customers.customer_id} = ${deliveries.customer_name}"
			},
			wantErr: "cycle",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := ordersExplore()
			tt.mutate(e)
			_, err := Build(e, testDialect())
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestJoinPath(t *testing.T) {
	c, err := Build(ordersExplore(), testDialect())
	require.NoError(t, err)

	// Base table has an empty path.
	path, err := c.JoinPath("orders")
	require.NoError(t, err)
	assert.Empty(t, path)

	// Deliveries requires customers first.
	path, err = c.JoinPath("deliveries")
	require.NoError(t, err)
	require.Len(t, path, 2)
	assert.Equal(t, "customers", path[0].Table)
	assert.Equal(t, "deliveries", path[1].Table)
	assert.Equal(t, JoinInner, path[1].Type)

	_, err = c.JoinPath("ghost")
	assert.ErrorIs(t, err, ErrUnreachableTable)
}

func TestJoinConditionCompiled(t *testing.T) {
	c, err := Build(ordersExplore(), testDialect())
	require.NoError(t, err)

	joins := c.Joins()
	require.Len(t, joins, 2)
	assert.Equal(t, `"customers"."customer_id" = "orders"."customer_id"`, joins[0].SQLOn)
	assert.Equal(t, []string{"orders"}, joins[0].DependsOn)
	assert.Equal(t, []string{"customers"}, joins[1].DependsOn)
}

func TestTableSQL(t *testing.T) {
	c, err := Build(ordersExplore(), testDialect())
	require.NoError(t, err)

	sql, err := c.TableSQL("orders")
	require.NoError(t, err)
	assert.Equal(t, `"analytics"."orders" AS "orders"`, sql)

	_, err = c.TableSQL("ghost")
	assert.Error(t, err)
}

func TestResolve_UnknownField(t *testing.T) {
	c, err := Build(ordersExplore(), testDialect())
	require.NoError(t, err)

	_, err = c.Resolve("orders_ghost")
	assert.ErrorIs(t, err, ErrFieldNotFound)
	assert.ErrorContains(t, err, "orders_ghost")
}

func TestAllFields_DeterministicOrder(t *testing.T) {
	c, err := Build(ordersExplore(), testDialect())
	require.NoError(t, err)

	var ids []string
	for _, f := range c.AllFields() {
		ids = append(ids, f.ID())
	}
	// Tables in declaration order, dimensions before metrics.
	assert.Equal(t, []string{
		"orders_order_id", "orders_status", "orders_customer_id", "orders_amount",
		"orders_created_at", "orders_count", "orders_revenue",
		"customers_customer_id", "customers_name", "customers_city",
		"customers_distinct_customers",
		"deliveries_courier", "deliveries_customer_name",
	}, ids)
}

func TestCompileInline(t *testing.T) {
	c, err := Build(ordersExplore(), testDialect())
	require.NoError(t, err)

	sql, tables, err := c.CompileInline("${TABLE}.discount + ${customers.name}", "orders")
	require.NoError(t, err)
	assert.Equal(t, `"orders".discount + "customers"."name"`, sql)
	assert.Equal(t, []string{"orders", "customers"}, tables)

	_, _, err = c.CompileInline("${orders.ghost}", "orders")
	assert.Error(t, err)

	_, _, err = c.CompileInline("x", "ghost")
	assert.Error(t, err)
}

func TestItems(t *testing.T) {
	c, err := Build(ordersExplore(), testDialect())
	require.NoError(t, err)

	items := c.Items(map[string]int{"orders_revenue": 3})

	var tables, fields int
	var sawHidden bool
	for _, it := range items {
		switch it.Type {
		case ItemTypeTable:
			tables++
		case ItemTypeField:
			fields++
			require.NotEmpty(t, it.SearchUUID)
			if it.Name == "customer_id" {
				sawHidden = true
			}
			if it.TableName == "orders" && it.Name == "revenue" {
				assert.Equal(t, 3, it.ChartUsage)
			}
		}
	}
	assert.Equal(t, 3, tables)
	assert.False(t, sawHidden, "hidden fields are excluded from the projection")
	assert.Greater(t, fields, 0)
}
