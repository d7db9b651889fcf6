package core

// Event clock frequency used when a target does not set one.
const DefaultClockFreq = 1000000

var (
	systemTicks uint32
	clockFreq   uint32 = DefaultClockFreq
)

// GetTime returns the event clock in ticks.
func GetTime() uint32 {
	return getSystemTicks()
}

// SetTime loads the event clock, e.g. from a hardware counter.
func SetTime(ticks uint32) {
	setSystemTicks(ticks)
}

// AdvanceTime moves the event clock forward by n ticks.
func AdvanceTime(n uint32) {
	setSystemTicks(getSystemTicks() + n)
}

// SetClockFreq records the event clock rate in Hz.
func SetClockFreq(hz uint32) {
	if hz != 0 {
		clockFreq = hz
	}
}

// ClockFreq returns the event clock rate in Hz.
func ClockFreq() uint32 {
	return clockFreq
}

// TicksToUS converts event clock ticks to microseconds.
func TicksToUS(ticks uint32) uint32 {
	return uint32(uint64(ticks) * 1000000 / uint64(clockFreq))
}
