package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/rxtech-lab/argo-portfolio/pkg/errors"
)

type ConfigTestSuite struct {
	suite.Suite
}

func TestConfigSuite(t *testing.T) {
	suite.Run(t, new(ConfigTestSuite))
}

func (suite *ConfigTestSuite) write(content string) string {
	path := filepath.Join(suite.T().TempDir(), "config.yaml")
	suite.Require().NoError(os.WriteFile(path, []byte(content), 0o644))

	return path
}

func (suite *ConfigTestSuite) TestLoad() {
	path := suite.write(`
api:
  base_url: http://localhost:8080
  access_token: secret
accounts:
  - "123456"
symbols:
  - AAPL
  - MSFT
ledger:
  snapshot_path: /tmp/portfolio.json
  monitor_interval: 2s
`)

	cfg, err := Load(path)
	suite.Require().NoError(err)
	suite.Equal("secret", cfg.API.AccessToken)
	suite.Equal([]string{"123456"}, cfg.Accounts)
	suite.Equal([]string{"AAPL", "MSFT"}, cfg.Symbols)
	suite.Equal("/tmp/portfolio.json", cfg.Ledger.SnapshotPath)
	suite.Equal(2*time.Second, time.Duration(cfg.Ledger.MonitorInterval))
	suite.Equal(2*time.Second, cfg.Ledger.ToLedger().MonitorInterval)
}

func (suite *ConfigTestSuite) TestLoad_MissingToken() {
	path := suite.write(`
accounts:
  - "123456"
`)

	_, err := Load(path)
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidConfiguration))
}

func (suite *ConfigTestSuite) TestLoad_NoAccounts() {
	path := suite.write(`
api:
  access_token: secret
accounts: []
`)

	_, err := Load(path)
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidConfiguration))
}

func (suite *ConfigTestSuite) TestLoad_MissingFile() {
	_, err := Load(filepath.Join(suite.T().TempDir(), "absent.yaml"))
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidConfiguration))
}
