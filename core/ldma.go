// Linked DMA (LDMA) transfer descriptors
// Descriptors are built once as an ordered list and linked by index; Encode
// turns the list into the four-word layout the LDMA reads from RAM.
package core

import (
	"errors"
	"math/bits"
)

// LDMA channel assignments
const (
	MicDMAChannel    = 0 // ADC scan FIFO -> sample buffers
	SerialDMAChannel = 1 // sample buffer -> USART TXDOUBLE
	NumDMAChannels   = 8
)

// MaxTransferUnits is the number of units one descriptor can move.
// XFERCNT is 11 bits wide and zero-based, so the largest count is 2047.
const MaxTransferUnits = 2048

// LDMA interrupt flag bits. Channel n completion is bit n.
const (
	LDMAIntError = 1 << 31
)

// ChannelMask returns the interrupt/enable bit for a channel.
func ChannelMask(ch uint8) uint32 {
	return 1 << ch
}

// TransferSize is the width of one transfer unit.
type TransferSize uint8

const (
	SizeByte TransferSize = 0
	SizeHalf TransferSize = 1
	SizeWord TransferSize = 2
)

// Bytes returns the unit width in bytes.
func (s TransferSize) Bytes() uint32 {
	return 1 << s
}

// Increment selects how an address advances after each unit.
type Increment uint8

const (
	IncOne  Increment = 0
	IncTwo  Increment = 1
	IncFour Increment = 2
	IncNone Increment = 3
)

// Step returns the address advance in bytes for a unit of the given size.
func (i Increment) Step(size TransferSize) uint32 {
	switch i {
	case IncOne:
		return size.Bytes()
	case IncTwo:
		return 2 * size.Bytes()
	case IncFour:
		return 4 * size.Bytes()
	}
	return 0
}

// AddrMode selects absolute addressing or addressing relative to the
// address the previous descriptor finished at.
type AddrMode uint8

const (
	AddrAbs AddrMode = 0
	AddrRel AddrMode = 1
)

// BlockSize is the number of units moved per arbitration (per request).
type BlockSize uint8

const (
	BlockUnit1 BlockSize = 0
	BlockUnit2 BlockSize = 1
	BlockUnit3 BlockSize = 2
	BlockUnit4 BlockSize = 3
	BlockUnit6 BlockSize = 4
	BlockUnit8 BlockSize = 5
	BlockAll   BlockSize = 15
)

// Units returns how many units one block moves. BlockAll returns 0.
func (b BlockSize) Units() int {
	switch b {
	case BlockUnit1:
		return 1
	case BlockUnit2:
		return 2
	case BlockUnit3:
		return 3
	case BlockUnit4:
		return 4
	case BlockUnit6:
		return 6
	case BlockUnit8:
		return 8
	}
	return 0
}

// BlockSizeFor maps a unit count to the matching block size setting.
func BlockSizeFor(units int) (BlockSize, bool) {
	switch units {
	case 1:
		return BlockUnit1, true
	case 2:
		return BlockUnit2, true
	case 3:
		return BlockUnit3, true
	case 4:
		return BlockUnit4, true
	case 6:
		return BlockUnit6, true
	case 8:
		return BlockUnit8, true
	}
	return 0, false
}

// ReqMode selects whether a request moves one block or the whole descriptor.
type ReqMode uint8

const (
	ReqBlock ReqMode = 0
	ReqAll   ReqMode = 1
)

// PeripheralSignal is the request source that paces a channel.
type PeripheralSignal uint8

const (
	SignalNone PeripheralSignal = iota
	SignalADC0Scan
	SignalUSART0TXBL
)

func (s PeripheralSignal) String() string {
	switch s {
	case SignalADC0Scan:
		return "ADC0_SCAN"
	case SignalUSART0TXBL:
		return "USART0_TXBL"
	}
	return "NONE"
}

// TransferConfig is the per-channel setup applied when a transfer starts.
type TransferConfig struct {
	Signal    PeripheralSignal
	LoopCount uint8 // LOOPCNT, consumed by descriptors with DecLoopCount set
}

// Descriptor is one transfer descriptor. Next is the index of the
// descriptor to load after this one within the same Chain.
type Descriptor struct {
	XferCount    uint16 // units - 1
	StructReq    bool
	ByteSwap     bool
	BlockSize    BlockSize
	DoneIFS      bool
	ReqMode      ReqMode
	DecLoopCount bool
	IgnoreSReq   bool
	SrcInc       Increment
	DstInc       Increment
	Size         TransferSize
	SrcMode      AddrMode
	DstMode      AddrMode
	Src          uint32
	Dst          uint32
	Link         bool
	Next         int
}

// Units returns the number of units the descriptor moves.
func (d *Descriptor) Units() int {
	return int(d.XferCount) + 1
}

var (
	ErrTransferCount = errors.New("ldma: transfer count exceeds XFERCNT")
	ErrBadLink       = errors.New("ldma: descriptor link out of range")
	ErrEmptyChain    = errors.New("ldma: empty descriptor chain")
)

// Chain is an ordered descriptor list.
type Chain []Descriptor

// Validate checks counts and link targets.
func (c Chain) Validate() error {
	if len(c) == 0 {
		return ErrEmptyChain
	}
	for i := range c {
		d := &c[i]
		if d.Units() > MaxTransferUnits {
			return ErrTransferCount
		}
		if (d.Link || d.DecLoopCount) && (d.Next < 0 || d.Next >= len(c)) {
			return ErrBadLink
		}
	}
	return nil
}

// Units sums the units of descriptors [from, to).
func (c Chain) Units(from, to int) int {
	total := 0
	for i := from; i < to && i < len(c); i++ {
		total += c[i].Units()
	}
	return total
}

// Descriptor word sizes
const (
	DescriptorWords = 4
	DescriptorBytes = DescriptorWords * 4
)

// CTRL word bit positions
const (
	ctrlStructReq  = 3
	ctrlXferCnt    = 4
	ctrlByteSwap   = 15
	ctrlBlockSize  = 16
	ctrlDoneIFS    = 20
	ctrlReqMode    = 21
	ctrlDecLoopCnt = 22
	ctrlIgnoreSReq = 23
	ctrlSrcInc     = 24
	ctrlSize       = 26
	ctrlDstInc     = 28
	ctrlSrcMode    = 30
	ctrlDstMode    = 31

	linkModeRel = 1 << 0
	linkEnable  = 1 << 1
)

func flag(b bool, pos uint) uint32 {
	if b {
		return 1 << pos
	}
	return 0
}

// Ctrl returns the CTRL word of a transfer descriptor.
func (d *Descriptor) Ctrl() uint32 {
	return uint32(d.XferCount&0x7FF)<<ctrlXferCnt |
		flag(d.StructReq, ctrlStructReq) |
		flag(d.ByteSwap, ctrlByteSwap) |
		uint32(d.BlockSize&0xF)<<ctrlBlockSize |
		flag(d.DoneIFS, ctrlDoneIFS) |
		uint32(d.ReqMode&1)<<ctrlReqMode |
		flag(d.DecLoopCount, ctrlDecLoopCnt) |
		flag(d.IgnoreSReq, ctrlIgnoreSReq) |
		uint32(d.SrcInc&3)<<ctrlSrcInc |
		uint32(d.Size&3)<<ctrlSize |
		uint32(d.DstInc&3)<<ctrlDstInc |
		uint32(d.SrcMode&1)<<ctrlSrcMode |
		uint32(d.DstMode&1)<<ctrlDstMode
}

// LinkWord returns the LINK word for descriptor i. Links are always
// relative: LINKADDR holds the byte offset to the next descriptor.
func (c Chain) LinkWord(i int) uint32 {
	d := &c[i]
	offset := int32(d.Next-i) * DescriptorBytes
	w := uint32(offset) &^ 3
	w |= linkModeRel
	if d.Link {
		w |= linkEnable
	}
	return w
}

// Encode writes the chain into dst in hardware layout and returns the
// number of words written. dst must hold DescriptorWords*len(c) words.
func (c Chain) Encode(dst []uint32) int {
	n := 0
	for i := range c {
		if n+DescriptorWords > len(dst) {
			break
		}
		d := &c[i]
		dst[n+0] = d.Ctrl()
		dst[n+1] = d.Src
		dst[n+2] = d.Dst
		dst[n+3] = c.LinkWord(i)
		n += DescriptorWords
	}
	return n
}

// SwapBytes reverses the byte order of a half-word, as BYTESWAP does.
func SwapBytes(v uint16) uint16 {
	return bits.ReverseBytes16(v)
}
