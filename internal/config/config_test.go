package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("BILLING_DEVICE_ID", "till-7")

	cfg := Load()

	assert.Equal(t, "smartbill", cfg.App.Name)
	assert.Equal(t, "offlineBills", cfg.Local.QueueKey)
	assert.Equal(t, "till-7", cfg.Billing.DeviceID)
	assert.Equal(t, "0.18", cfg.Billing.TaxRate.String())
	assert.Equal(t, 10*time.Second, cfg.Sync.WriteTimeout)
	assert.False(t, cfg.Redis.Enabled())
}

func TestLocation_FallsBackToLocal(t *testing.T) {
	app := AppConfig{Timezone: "Nowhere/Invalid"}
	assert.Equal(t, time.Local, app.Location())

	app.Timezone = "Asia/Kolkata"
	assert.Equal(t, "Asia/Kolkata", app.Location().String())
}

func TestLogError_WritesFields(t *testing.T) {
	var buf bytes.Buffer
	logg := newLogger(&LogConfig{Level: "debug", Format: "json"}, &buf)

	LogError(logg, "sync", "Drain", "remote write", map[string]int{"local_id": 1}, errors.New("boom"))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "sync", entry["module"])
	assert.Equal(t, "Drain", entry["funcName"])
	assert.Equal(t, "boom", entry["msg"])
	assert.Equal(t, logrus.ErrorLevel.String(), entry["level"])
}
