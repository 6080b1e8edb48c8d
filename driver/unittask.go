package driver

import (
	"time"

	"github.com/rondoval/emu68-genet-driver/soc/bcm2711/genet"
	"golang.org/x/time/rate"
)

// Start launches the unit task: the single dedicated goroutine that pumps
// the mailbox, drains the RX ring, and runs periodic TX reclaim and the
// stats tick. Grounded on ehrlich-b-go-ublk/internal/queue/runner.go's ioLoop
// shape (a for{select} loop over a cancellable context and channel
// signals), adapted from that file's io_uring completion wait to this
// driver's mailbox-or-timer wait.
func (u *Unit) Start() {
	u.cancel = make(chan struct{})
	u.done = make(chan struct{})
	go u.run()
}

// Stop signals the unit task to exit and blocks until it has: shutdown is
// cooperative, a cancel signal followed by waiting on the task's done
// channel.
func (u *Unit) Stop() {
	if u.cancel == nil {
		return
	}
	close(u.cancel)
	<-u.done
}

func (u *Unit) run() {
	defer close(u.done)

	ladder := u.opts.PollDelayUS
	if len(ladder) == 0 {
		ladder = DefaultOptions().PollDelayUS
	}
	ladderIdx := 0

	// softCap clamps the chosen poll delay while TX descriptors remain
	// outstanding: a token-bucket limiter backs the
	// back-off instead of a hand-rolled ticker-reset loop.
	softCap := rate.NewLimiter(rate.Every(time.Duration(u.opts.TxReclaimSoftUS)*time.Microsecond), 1)

	packetTimer := time.NewTimer(time.Duration(ladder[0]) * time.Microsecond)
	defer packetTimer.Stop()

	statsInterval := u.opts.StatsInterval
	if statsInterval <= 0 {
		statsInterval = DefaultOptions().StatsInterval
	}
	statsTimer := time.NewTicker(statsInterval)
	defer statsTimer.Stop()

	for {
		select {
		case <-u.cancel:
			return

		case fn := <-u.mailbox:
			u.drainMailbox(fn)

		case <-packetTimer.C:
			activity := u.serviceOnlinePackets()

			if activity {
				ladderIdx = 0
			} else if ladderIdx < len(ladder)-1 {
				ladderIdx++
			}
			delay := time.Duration(ladder[ladderIdx]) * time.Microsecond

			if u.hw.FreeTxDescriptors() < u.txRingCapacityHint() {
				if capped := softCap.Reserve().Delay(); capped < delay {
					delay = capped
				}
			}
			packetTimer.Reset(delay)

		case <-statsTimer.C:
			u.logStats()
		}
	}
}

// drainMailbox runs fn and then drains any further messages already queued.
func (u *Unit) drainMailbox(fn func()) {
	fn()
	for {
		select {
		case next := <-u.mailbox:
			next()
		default:
			return
		}
	}
}

// serviceOnlinePackets drains the RX ring (with a configured burst and
// idle-break heuristic) and runs TX reclaim, reporting whether any activity
// occurred.
func (u *Unit) serviceOnlinePackets() bool {
	if u.State() != StateOnline {
		return false
	}

	activity := false
	burst := u.opts.RxPollBurst
	if burst <= 0 {
		burst = DefaultOptions().RxPollBurst
	}
	idleBreak := u.opts.RxPollBurstIdleBreak

	idle := 0
	for i := 0; i < burst; i++ {
		frame, err := u.hw.Recv()
		if err != nil {
			idle++
			if idleBreak > 0 && idle >= idleBreak {
				break
			}
			continue
		}
		idle = 0
		activity = true
		u.deliver(frame)
		u.hw.FreePkt()
	}

	before := u.hw.FreeTxDescriptors()
	u.hw.Reclaim(u.completeTx)
	if u.hw.FreeTxDescriptors() != before {
		activity = true
	}

	if changed, _, err := u.hw.PollLink(); err == nil && changed {
		u.mu.Lock()
		u.reportLocked(EventHardware)
		u.mu.Unlock()
	}

	return activity
}

// txRingCapacityHint is the descriptor count below which TX is considered
// to have outstanding work for the soft-cap clamp.
func (u *Unit) txRingCapacityHint() int {
	return genet.RingSize
}

// logStats logs the internal diagnostic counters.
func (u *Unit) logStats() {
	stats := u.hw.StatsSnapshot()
	internal := u.hw.InternalSnapshot()
	u.logger.Info("unit stats",
		"unit", u.Number,
		"tx_packets", stats.PacketsSent,
		"rx_packets", stats.PacketsReceived,
		"rx_dropped", stats.PacketsDropped,
		"rx_overruns", stats.Overruns,
		"tx_dma", internal.TxDMA,
		"tx_copy", internal.TxCopy,
		"tx_dropped", internal.TxDropped,
	)
}
