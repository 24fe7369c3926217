package config_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kb9xyz/packetnode/internal/config"
)

const sample = `
# comment line
* also a comment

CHANNEL 0
MYCALL N0CALL-1
MODEM 2400
TXDELAY 30
TXTAIL 10
PERSIST 128
SLOTTIME 10
FULLDUP off
PACLEN 128
MAXFRAME 4
FRACK 4
RETRY 8
KISSPORT 8001
AGWPORT 8010
`

func TestLoadParsesDirectives(t *testing.T) {
	cfg, errs := config.Load(strings.NewReader(sample))
	require.Empty(t, errs)

	ch := cfg.Channels[0]
	require.NotNil(t, ch)
	assert.Equal(t, "N0CALL-1", ch.MyCall)
	assert.Equal(t, 2400, ch.Baud)
	assert.Equal(t, 300*time.Millisecond, ch.TXDelay)
	assert.Equal(t, 100*time.Millisecond, ch.TXTail)
	assert.Equal(t, 128, ch.Persist)
	assert.False(t, ch.FullDuplex)
	assert.Equal(t, 128, ch.Paclen)
	assert.Equal(t, 4, ch.MaxFrameBasic)
	assert.Equal(t, 4*time.Second, ch.FrackSec)
	assert.Equal(t, 8, ch.Retry)
	assert.Equal(t, 8001, cfg.KISSPort)
	assert.Equal(t, 8010, cfg.AGWPort)
}

func TestNewDefaultsAGWPortTo8000(t *testing.T) {
	assert.Equal(t, 8000, config.New().AGWPort)
}

func TestLoadReportsUnrecognizedDirective(t *testing.T) {
	_, errs := config.Load(strings.NewReader("BOGUSDIRECTIVE 1\n"))
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "unrecognized directive")
}

func TestLoadReportsMissingArgument(t *testing.T) {
	_, errs := config.Load(strings.NewReader("PERSIST\n"))
	require.Len(t, errs, 1)
}

func TestTokenizeHonorsQuotedSpaces(t *testing.T) {
	cfg, errs := config.Load(strings.NewReader(`ADEVICE "plughw:1,0 extra"` + "\n"))
	require.Empty(t, errs)
	assert.Equal(t, "plughw:1,0 extra", cfg.AudioDev)
}

func TestDefaultChannelZeroExists(t *testing.T) {
	cfg := config.New()
	require.NotNil(t, cfg.Channels[0])
	assert.Equal(t, "N0CALL", cfg.Channels[0].MyCall)
}
