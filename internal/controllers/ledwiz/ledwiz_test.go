package ledwiz

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/feedback-core/internal/output/controller"
)

type recorder struct {
	reports [][]byte
	fail    error
	closed  bool
}

func (r *recorder) Write(b []byte) (int, error) {
	if r.fail != nil {
		return 0, r.fail
	}
	r.reports = append(r.reports, append([]byte(nil), b...))
	return len(b), nil
}

func (r *recorder) Close() error {
	r.closed = true
	return nil
}

func connected(t *testing.T) (*Controller, *recorder) {
	t.Helper()
	rec := &recorder{}
	c := New(Config{Name: "lw1", Unit: 1})
	c.SetOpener(func(int) (io.WriteCloser, error) { return rec, nil })
	require.NoError(t, c.ConnectToController(context.Background()))
	rec.reports = nil
	return c, rec
}

func TestEncode(t *testing.T) {
	values := make([]byte, Outputs)
	values[0] = 255
	values[9] = 1
	values[31] = 128

	sba, pba := Encode(values)
	assert.Equal(t, [4]byte{0x01, 0x02, 0x00, 0x80}, sba)
	assert.Equal(t, byte(48), pba[0])
	assert.Equal(t, byte(1), pba[9])
	assert.Equal(t, byte(24), pba[31])
	assert.Zero(t, pba[1])
}

func TestConnectSendsAllOff(t *testing.T) {
	rec := &recorder{}
	c := New(Config{Name: "lw1", Unit: 3, PulseSpeed: 9})
	logger := &warnLogger{}
	c.SetLogger(logger)
	assert.Len(t, logger.warns, 1, "the replaced pulse speed must be reported")
	var opened int
	c.SetOpener(func(unit int) (io.WriteCloser, error) {
		opened = unit
		return rec, nil
	})

	require.NoError(t, c.ConnectToController(context.Background()))
	assert.Equal(t, 3, opened)
	require.Len(t, rec.reports, 1+pbaGroups)
	assert.Equal(t, []byte{0, 64, 0, 0, 0, 0, DefaultPulseSpeed, 0, 0}, rec.reports[0], "SBA")
}

func TestUpdateSendsOnlyWhatChanged(t *testing.T) {
	c, rec := connected(t)
	ctx := context.Background()
	values := make([]byte, Outputs)

	// Unchanged: nothing is written.
	require.NoError(t, c.UpdateOutputs(ctx, values))
	require.Empty(t, rec.reports, "unchanged update")

	// Output 10 (group 1): SBA plus PBA groups 0 and 1.
	values[10] = 255
	require.NoError(t, c.UpdateOutputs(ctx, values))
	require.Len(t, rec.reports, 3)
	assert.Equal(t, byte(64), rec.reports[0][1], "SBA command")
	assert.Equal(t, byte(0x04), rec.reports[0][3], "SBA bank 1")
	assert.Equal(t, byte(48), rec.reports[2][1+2], "PBA group 1")

	rec.reports = nil
	require.NoError(t, c.UpdateOutputs(ctx, values))
	assert.Empty(t, rec.reports, "repeat update")
}

func TestUpdateAfterFailureResends(t *testing.T) {
	c, rec := connected(t)
	values := make([]byte, Outputs)
	values[0] = 10

	rec.fail = errors.New("usb gone")
	err := c.UpdateOutputs(context.Background(), values)
	require.Error(t, err)
	require.Equal(t, controller.KindTransient, controller.KindOf(err))

	rec.fail = nil
	require.NoError(t, c.UpdateOutputs(context.Background(), make([]byte, Outputs)))
	assert.Len(t, rec.reports, 1+pbaGroups, "a failure forces a full resend")
}

func TestDisconnect(t *testing.T) {
	c, rec := connected(t)
	require.NoError(t, c.DisconnectFromController())
	assert.True(t, rec.closed, "device not closed")
	assert.ErrorIs(t, c.UpdateOutputs(context.Background(), make([]byte, Outputs)), ErrNotOpen)
	assert.NoError(t, c.DisconnectFromController(), "second disconnect")
}

type warnLogger struct {
	warns []string
}

func (l *warnLogger) Debug(string, ...any) {}
func (l *warnLogger) Info(string, ...any)  {}
func (l *warnLogger) Error(string, ...any) {}

func (l *warnLogger) Warn(msg string, keysAndValues ...any) {
	l.warns = append(l.warns, fmt.Sprint(append([]any{msg}, keysAndValues...)...))
}

func TestPulseSpeedDefaults(t *testing.T) {
	tests := []struct {
		name      string
		speed     int
		want      int
		wantWarns int
	}{
		{"unset", 0, DefaultPulseSpeed, 0},
		{"in range", 5, 5, 0},
		{"upper bound", 7, 7, 0},
		{"too fast", 9, DefaultPulseSpeed, 1},
		{"negative", -1, DefaultPulseSpeed, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(Config{Name: "lw1", Unit: 1, PulseSpeed: tt.speed})
			logger := &warnLogger{}
			c.SetLogger(logger)

			assert.Equal(t, tt.want, c.PulseSpeed())
			require.Len(t, logger.warns, tt.wantWarns)
			if tt.wantWarns > 0 {
				assert.Contains(t, logger.warns[0], "pulse_speed")
			}
		})
	}
}

func TestVerifySettings(t *testing.T) {
	for _, unit := range []int{0, 17} {
		c := New(Config{Name: "lw", Unit: unit})
		assert.ErrorIs(t, c.VerifySettings(), ErrInvalidUnit, "unit %d", unit)
	}
}

func fakeSysfs(t *testing.T, nodes map[string]string) Enumerator {
	t.Helper()
	sys := t.TempDir()
	dev := t.TempDir()
	for node, hidID := range nodes {
		dir := filepath.Join(sys, "class", "hidraw", node, "device")
		require.NoError(t, os.MkdirAll(dir, 0o755))
		uevent := "DRIVER=hid-generic\nHID_ID=" + hidID + "\nHID_NAME=test\n"
		require.NoError(t, os.WriteFile(filepath.Join(dir, "uevent"), []byte(uevent), 0o644))
		require.NoError(t, os.WriteFile(filepath.Join(dev, node), nil, 0o644))
	}
	return Enumerator{SysRoot: sys, DevRoot: dev}
}

func TestEnumerator(t *testing.T) {
	e := fakeSysfs(t, map[string]string{
		"hidraw0": "0003:0000046D:0000C52B",
		"hidraw1": "0003:0000FAFA:000000F2",
		"hidraw2": "0003:0000FAFA:000000F0",
	})

	units, err := e.Units()
	require.NoError(t, err)
	require.Len(t, units, 2)
	assert.Equal(t, 1, units[0].Number)
	assert.Equal(t, 3, units[1].Number)
	assert.Equal(t, "hidraw1", filepath.Base(units[1].Node))

	_, err = e.Open(2)
	assert.ErrorIs(t, err, ErrDeviceNotFound)

	c := New(Config{Name: "lw3", Unit: 3})
	c.SetOpener(e.Open)
	require.NoError(t, c.ConnectToController(context.Background()))
	defer c.DisconnectFromController()

	written, err := os.ReadFile(units[1].Node)
	require.NoError(t, err)
	assert.Len(t, written, (1+pbaGroups)*(1+reportSize))
}

func TestEnumeratorNoHidraw(t *testing.T) {
	units, err := Enumerator{SysRoot: t.TempDir()}.Units()
	assert.NoError(t, err)
	assert.Empty(t, units)
}
