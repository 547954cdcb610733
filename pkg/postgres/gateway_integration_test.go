package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/ajitpratap0/lakeflow/pkg/errors"
	"github.com/ajitpratap0/lakeflow/pkg/testutil"
)

type GatewayIntegrationSuite struct {
	testutil.IntegrationTestSuite
	gw *Gateway
}

func TestGatewayIntegration(t *testing.T) {
	suite.Run(t, new(GatewayIntegrationSuite))
}

func (s *GatewayIntegrationSuite) SetupTest() {
	gw, err := ConnectDSN(s.Context(), s.DSN(), testutil.TestLogger(s.T()))
	s.Require().NoError(err)
	s.gw = gw
}

func (s *GatewayIntegrationSuite) TearDownTest() {
	if s.gw != nil {
		s.Require().NoError(s.gw.Close(context.Background()))
	}
}

func (s *GatewayIntegrationSuite) TestPing() {
	s.Require().NoError(s.gw.Ping(s.Context()))
}

func (s *GatewayIntegrationSuite) TestEnsureSchemaIsIdempotent() {
	ctx := s.Context()
	s.Require().NoError(s.gw.EnsureSchema(ctx))
	s.Require().NoError(s.gw.EnsureSchema(ctx))

	rows, err := s.gw.Query(ctx, `SELECT table_name FROM information_schema.tables
		WHERE table_schema = 'raw' AND table_name IN ('products', 'users', 'carts')
		ORDER BY table_name`)
	s.Require().NoError(err)
	s.Require().Len(rows, 3)

	names := make([]interface{}, 0, len(rows))
	for _, r := range rows {
		v, _ := r.Get("table_name")
		names = append(names, v)
	}
	s.Equal([]interface{}{"carts", "products", "users"}, names)
}

func (s *GatewayIntegrationSuite) TestExecuteAndQuery() {
	ctx := s.Context()
	_, err := s.gw.Execute(ctx, `CREATE TEMP TABLE lakeflow_values (
		id INTEGER, price NUMERIC, day DATE, doc JSONB)`)
	s.Require().NoError(err)

	n, err := s.gw.Execute(ctx, `INSERT INTO lakeflow_values VALUES ($1, $2, $3, $4)`,
		1, "109.95", "2024-03-01", `{"rate":3.9}`)
	s.Require().NoError(err)
	s.Equal(int64(1), n)

	rows, err := s.gw.Query(ctx, `SELECT id, price, day, doc FROM lakeflow_values`)
	s.Require().NoError(err)
	s.Require().Len(rows, 1)

	s.Equal([]string{"id", "price", "day", "doc"}, rows[0].Columns)
	s.Equal(int32(1), rows[0].Values[0])
	s.Equal("109.95", rows[0].Values[1])
	s.Equal("2024-03-01", rows[0].Values[2])
	s.Equal(map[string]interface{}{"rate": 3.9}, rows[0].Values[3])
}

func (s *GatewayIntegrationSuite) TestInTxRollsBack() {
	ctx := s.Context()
	_, err := s.gw.Execute(ctx, `CREATE TEMP TABLE lakeflow_tx (id INTEGER PRIMARY KEY)`)
	s.Require().NoError(err)

	err = s.gw.InTx(ctx, func(tx Execer) error {
		if _, err := tx.Exec(ctx, `INSERT INTO lakeflow_tx VALUES (1)`); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `INSERT INTO lakeflow_tx VALUES (1)`)
		return err
	})
	s.Require().Error(err)
	s.True(errors.IsType(err, errors.ErrorTypeQuery))

	rows, err := s.gw.Query(ctx, `SELECT id FROM lakeflow_tx`)
	s.Require().NoError(err)
	s.Empty(rows)
}

func (s *GatewayIntegrationSuite) TestQueryError() {
	_, err := s.gw.Query(s.Context(), `SELECT * FROM analytics.does_not_exist`)
	s.Require().Error(err)
	s.True(errors.IsType(err, errors.ErrorTypeQuery))
}
