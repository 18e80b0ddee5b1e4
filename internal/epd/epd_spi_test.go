package epd

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"periph.io/x/conn/v3/conntest"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
	"periph.io/x/conn/v3/spi/spitest"
)

func newTestDev(t *testing.T, name string) (*Dev, *spitest.Record, *gpiotest.Pin) {
	t.Helper()
	rec := &spitest.Record{}
	rst := &gpiotest.Pin{N: "RST"}
	d, err := New(rec, 0, &gpiotest.Pin{N: "DC"}, rst, &gpiotest.Pin{N: "BUSY", L: gpio.High}, mustPanel(t, name))
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	return d, rec, rst
}

func writes(ops []conntest.IO) [][]byte {
	out := make([][]byte, 0, len(ops))
	for _, op := range ops {
		out = append(out, op.W)
	}
	return out
}

func TestDevInitializesOnFirstUse(t *testing.T) {
	d, rec, rst := newTestDev(t, "GDEW0213Z16")

	if err := d.WriteImage([]byte{0x0f, 0xff}, []byte{0xff, 0xfe}, 0, 0, 16, 1); err != nil {
		t.Fatalf("WriteImage() failed: %v", err)
	}

	want := [][]byte{
		{boosterSoftStart}, {0x17, 0x17, 0x17},
		{powerOn},
		{panelSetting}, {0x0f},
		{vcomDataInterval}, {0x77},
		{resolutionSetting}, {104, 0, 212},
		{partialIn},
		{partialWindow}, {0, 15}, {0, 0, 0, 0, 0x01},
		{dataStartTransmission}, {0x0f, 0xff},
		{dataStartTransmission2}, {0x00, 0x01},
		{partialOut},
	}
	if diff := cmp.Diff(writes(rec.Ops), want, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("SPI writes difference (-got +want):\n%s", diff)
	}
	if rst.L != gpio.High {
		t.Error("reset line left low")
	}

	// Second write goes straight to the window.
	rec.Ops = nil
	if err := d.WriteImage([]byte{0xff, 0xff}, []byte{0xff, 0xff}, 0, 1, 16, 1); err != nil {
		t.Fatal(err)
	}
	if got := rec.Ops[0].W; !cmp.Equal(got, []byte{partialIn}) {
		t.Errorf("first write after init = %#v, want partial in", got)
	}
}

func TestDevPowerCycle(t *testing.T) {
	d, rec, _ := newTestDev(t, "GDEW029Z10")
	if err := d.Refresh(false); err != nil {
		t.Fatal(err)
	}

	rec.Ops = nil
	if err := d.PowerOff(); err != nil {
		t.Fatal(err)
	}
	if err := d.PowerOff(); err != nil {
		t.Fatal(err)
	}
	if err := d.Refresh(false); err != nil {
		t.Fatal(err)
	}

	want := [][]byte{{powerOff}, {powerOn}, {displayRefresh}}
	if diff := cmp.Diff(writes(rec.Ops), want); diff != "" {
		t.Errorf("SPI writes difference (-got +want):\n%s", diff)
	}
}

func TestDevRefreshWindowClips(t *testing.T) {
	d, rec, _ := newTestDev(t, "GDEW029Z10")
	if err := d.PowerOff(); err != nil {
		t.Fatal(err)
	}
	if err := d.RefreshWindow(120, 290, 64, 64); err != nil {
		t.Fatal(err)
	}

	got := writes(rec.Ops)
	// Skip the init sequence: the last four transfers are the window
	// selection and refresh.
	want := [][]byte{{partialWindow}, {120, 127}, {0x01, 0x22, 0x01, 0x27, 0x01}, {displayRefresh}, {partialOut}}
	if diff := cmp.Diff(got[len(got)-len(want):], want); diff != "" {
		t.Errorf("SPI writes difference (-got +want):\n%s", diff)
	}

	rec.Ops = nil
	if err := d.RefreshWindow(200, 0, 8, 8); err != nil {
		t.Fatal(err)
	}
	if len(rec.Ops) != 0 {
		t.Errorf("window outside the panel sent %d transfers", len(rec.Ops))
	}
}

func TestDevShortPlanes(t *testing.T) {
	d, rec, _ := newTestDev(t, "GDEW029Z10")
	if err := d.WriteImage([]byte{0}, []byte{0}, 0, 0, 16, 1); err == nil {
		t.Error("WriteImage() accepted planes shorter than the window")
	}
	if len(rec.Ops) != 0 {
		t.Errorf("short planes sent %d transfers", len(rec.Ops))
	}
}

func TestNewUnsupportedChip(t *testing.T) {
	for _, name := range []string{"GDE0213B1", "GDEW075Z09", "GDEW0154Z04"} {
		_, err := New(&spitest.Record{}, 0, &gpiotest.Pin{}, &gpiotest.Pin{}, &gpiotest.Pin{}, mustPanel(t, name))
		if !errors.Is(err, ErrUnsupportedChip) {
			t.Errorf("New(%s) error = %v, want %v", name, err, ErrUnsupportedChip)
		}
	}
}
