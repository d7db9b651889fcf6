package core

// DMAController is the abstract LDMA interface the pipeline uses.
// Target code implements it on the real registers; sim implements it in software.
type DMAController interface {
	// Init resets the controller and enables the engine-wide error interrupt.
	Init()

	// StartTransfer loads chain[0] into channel ch and enables the channel.
	// The chain memory must stay untouched while the channel runs.
	StartTransfer(ch uint8, cfg TransferConfig, chain Chain) error

	// StopTransfer disables the channels in mask.
	StopTransfer(mask uint32)

	// IntEnable / IntDisable set and clear bits in the interrupt enable mask.
	IntEnable(mask uint32)
	IntDisable(mask uint32)

	// IntGetEnabled returns pending flags that are also enabled.
	IntGetEnabled() uint32

	// IntClear clears pending flags in mask only.
	IntClear(mask uint32)

	// AddressOf returns the bus address of a sample buffer.
	AddressOf(buf []uint16) uint32
}

// ScanConfig describes the ADC scan setup used for acquisition.
type ScanConfig struct {
	PRSChannel    uint8 // PRS channel that triggers one conversion
	DataValid     int   // FIFO level that raises the DMA request (DVL)
	FIFOOverwrite bool
}

// SampleSource is the ADC scan-mode sample producer.
type SampleSource interface {
	// InitScan configures continuous scan conversions triggered by PRS.
	InitScan(cfg ScanConfig) error

	// ScanDataAddress returns the address of the scan FIFO data register.
	ScanDataAddress() uint32

	// ClearFIFO drops any buffered conversions.
	ClearFIFO()
}

// SerialPort is the serial output the transmit engine writes to.
type SerialPort interface {
	// TxDoubleAddress returns the address of the two-byte TX register.
	TxDoubleAddress() uint32
}

// RateTimer is the hardware timer whose overflow triggers the ADC.
type RateTimer interface {
	// ClockFreq returns the timer input clock in Hz.
	ClockFreq() uint32

	// SetTop sets the overflow value.
	SetTop(top uint32)

	// Enable starts or stops counting.
	Enable(on bool)
}

// Ports bundles the hardware adapters a Pipeline drives.
type Ports struct {
	DMA    DMAController
	Source SampleSource
	Serial SerialPort
	Timer  RateTimer
}

func (p Ports) complete() bool {
	return p.DMA != nil && p.Source != nil && p.Serial != nil && p.Timer != nil
}
