package config

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rondoval/emu68-genet-driver/driver"
)

func TestLoadAppliesRecognisedKeysCaseInsensitively(t *testing.T) {
	src := strings.NewReader("use_dma=0\nRX_POLL_BURST=32\n")
	opts := Load(src)

	assert.False(t, opts.UseDMA)
	assert.Equal(t, 32, opts.RxPollBurst)
}

func TestLoadSkipsBlankAndCommentLines(t *testing.T) {
	src := strings.NewReader("# comment\n\nRX_POLL_BURST=8\n")
	opts := Load(src)

	assert.Equal(t, 8, opts.RxPollBurst)
}

func TestLoadFallsBackOnMalformedValue(t *testing.T) {
	src := strings.NewReader("RX_POLL_BURST=not-a-number\n")
	opts := Load(src)

	assert.Equal(t, driver.DefaultOptions().RxPollBurst, opts.RxPollBurst)
}

func TestLoadRejectsNegativeValue(t *testing.T) {
	src := strings.NewReader("TX_RECLAIM_SOFT_US=-5\n")
	opts := Load(src)

	assert.Equal(t, driver.DefaultOptions().TxReclaimSoftUS, opts.TxReclaimSoftUS)
}

func TestLoadIgnoresUnknownKeys(t *testing.T) {
	src := strings.NewReader("SOME_FUTURE_KEY=1\n")
	opts := Load(src)

	assert.Equal(t, driver.DefaultOptions(), opts)
}

func TestLoadIgnoresTaskPriorityAndStackSizeKeys(t *testing.T) {
	src := strings.NewReader("UNIT_TASK_PRIORITY=10\nUNIT_STACK_SIZE=65536\n")
	opts := Load(src)

	assert.Equal(t, driver.DefaultOptions(), opts)
}

func TestLoadParsesPollDelayList(t *testing.T) {
	src := strings.NewReader("POLL_DELAY_US=100,200,300\n")
	opts := Load(src)

	assert.Equal(t, []int{100, 200, 300}, opts.PollDelayUS)
}

func TestLoadPollDelayListSkipsMalformedTokensButKeepsGoodOnes(t *testing.T) {
	src := strings.NewReader("POLL_DELAY_US=100,bogus,300\n")
	opts := Load(src)

	assert.Equal(t, []int{100, 300}, opts.PollDelayUS)
}

func TestLoadPollDelayListAllMalformedKeepsDefault(t *testing.T) {
	src := strings.NewReader("POLL_DELAY_US=bogus,also-bogus\n")
	opts := Load(src)

	assert.Equal(t, driver.DefaultOptions().PollDelayUS, opts.PollDelayUS)
}

func TestLoadEmptyReaderReturnsDefaults(t *testing.T) {
	opts := Load(strings.NewReader(""))
	assert.Equal(t, driver.DefaultOptions(), opts)
}

func TestLoadSkipsLineWithEmptyValue(t *testing.T) {
	src := strings.NewReader("RX_POLL_BURST=\nRX_POLL_BURST_IDLE_BREAK=3\n")
	opts := Load(src)

	assert.Equal(t, driver.DefaultOptions().RxPollBurst, opts.RxPollBurst)
	assert.Equal(t, 3, opts.RxPollBurstIdleBreak)
}
