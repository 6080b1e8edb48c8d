package mdio

import (
	"testing"
	"time"

	"github.com/rondoval/emu68-genet-driver/internal/mmio"
)

const testCmdOff = 0xc0

// simulateHardware watches cmdOff for the BUSY bit to be set, then plays the
// role of the MAC completing the transaction: it records the observed
// command word and writes back a response with BUSY cleared.
func simulateHardware(reg *mmio.Region, responseData uint16) <-chan uint32 {
	cmdCh := make(chan uint32, 1)
	go func() {
		for {
			v := reg.Read(testCmdOff)
			if v&(1<<cmdStart) != 0 {
				cmdCh <- v
				resp := v &^ (1 << cmdStart)
				resp = (resp &^ 0xffff) | uint32(responseData)
				reg.Write(testCmdOff, resp)
				return
			}
			time.Sleep(time.Microsecond)
		}
	}()
	return cmdCh
}

func TestReadEncodesPhyAddrRegAndOp(t *testing.T) {
	reg := mmio.NewRegion(make([]byte, 0x100))
	tr := New(reg, testCmdOff)
	cmdCh := simulateHardware(reg, 0x1234)

	got, err := tr.Read(5, 3)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got != 0x1234 {
		t.Fatalf("Read = %#x, want %#x", got, 0x1234)
	}

	cmd := <-cmdCh
	if pa := (cmd >> cmdRegPA) & 0x1f; pa != 5 {
		t.Errorf("PHY addr field = %d, want 5", pa)
	}
	if ra := (cmd >> cmdRegRA) & 0x1f; ra != 3 {
		t.Errorf("reg field = %d, want 3", ra)
	}
	if op := (cmd >> cmdOp) & 0x3; op != opRead {
		t.Errorf("op field = %d, want %d", op, opRead)
	}
}

func TestWriteEncodesDataField(t *testing.T) {
	reg := mmio.NewRegion(make([]byte, 0x100))
	tr := New(reg, testCmdOff)
	cmdCh := simulateHardware(reg, 0)

	if err := tr.Write(2, 1, 0xbeef); err != nil {
		t.Fatalf("Write: %v", err)
	}

	cmd := <-cmdCh
	if data := cmd & 0xffff; data != 0xbeef {
		t.Errorf("data field = %#x, want %#x", data, 0xbeef)
	}
	if op := (cmd >> cmdOp) & 0x3; op != opWrite {
		t.Errorf("op field = %d, want %d", op, opWrite)
	}
}

func TestReadTimesOutWhenBusyNeverClears(t *testing.T) {
	reg := mmio.NewRegion(make([]byte, 0x100))
	tr := New(reg, testCmdOff)

	_, err := tr.Read(0, 0)
	if _, ok := err.(*ErrTimeout); !ok {
		t.Fatalf("expected *ErrTimeout, got %v", err)
	}
}
