package uhfmac

/*------------------------------------------------------------------
 *
 * Purpose:   	MAC layer for the UHF transparent mode radio link.
 *
 * Description:	Sits between CSP and a radio that only moves fixed size
 *		opaque payloads (MPDUs).
 *
 *		Transmit:  ReceiveCSPPacket encodes one packet into MPDUs,
 *		which are then taken with NextMPDU or read directly from
 *		MPDUPayloadsBuffer.
 *
 *		Receive:  ProcessUHFPacket is called once for every MPDU
 *		received, in order.  It reports when a packet has been
 *		reconstructed.
 *
 *		Locking:  configuration is behind an RWMutex held for
 *		reading by every transmit and receive operation.  Transmit
 *		and receive each have their own mutex, so one goroutine
 *		can transmit while another receives.  Lock order is
 *		configuration, transmit, receive.
 *
 *---------------------------------------------------------------*/

import (
	"fmt"
	"slices"
	"sync"

	"github.com/charmbracelet/log"
)

type Config struct {
	ErrorCorrection   ErrorCorrectionScheme
	RFMode            RFModeNumber
	DisableFrameCheck bool

	// MPDUPayloadLength overrides the RF mode's transparent mode payload
	// length when non-zero.
	MPDUPayloadLength int

	// Format defaults to CSPFormat.
	Format PacketFormat

	Logger *log.Logger
}

type Stats struct {
	PacketsEncoded     uint64
	MPDUsProduced      uint64
	MPDUsDiscarded     uint64
	PacketsRejected    uint64
	FragmentsReceived  uint64
	FragmentsMalformed uint64
	PacketsDecoded     uint64
	PacketsResubmitted uint64
	DecodeFailures     uint64
	SymbolsCorrected   uint64
}

type MAC struct {
	configMu   sync.RWMutex
	desc       SchemeDescriptor
	rfMode     RFMode
	format     PacketFormat
	frameCheck bool
	mpduFixed  int

	txMu    sync.Mutex
	tx      fragmenter
	txStats Stats

	rxMu    sync.Mutex
	rx      reassembler
	rxStats Stats

	logger *log.Logger
}

func New(cfg Config) (*MAC, error) {
	var m = &MAC{ //nolint:exhaustruct
		format:     cfg.Format,
		frameCheck: !cfg.DisableFrameCheck,
		mpduFixed:  cfg.MPDUPayloadLength,
		logger:     cfg.Logger,
	}

	if m.format == nil {
		m.format = CSPFormat{}
	}

	if m.logger == nil {
		m.logger = log.Default()
	}
	m.logger = m.logger.WithPrefix("mac")

	if m.mpduFixed < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidMPDULength, m.mpduFixed)
	}

	var mode, err = LookupRFMode(cfg.RFMode)
	if err != nil {
		return nil, err
	}

	desc, err := m.describe(cfg.ErrorCorrection, mode)
	if err != nil {
		return nil, err
	}

	m.rfMode = mode
	m.desc = desc

	m.logger.Info("MAC ready", "scheme", desc.Scheme(), "rf_mode", int(mode.Number), "mpdu", desc.MPDUPayloadLength(), "frame_check", m.frameCheck)

	return m, nil
}

// describe builds the descriptor for a scheme and mode without touching m's state.
func (m *MAC) describe(scheme ErrorCorrectionScheme, mode RFMode) (SchemeDescriptor, error) {
	var mpduLength = IfThenElse(m.mpduFixed > 0, m.mpduFixed, mode.PayloadLength)

	var codec, err = NewCodec(scheme, mpduLength)
	if err != nil {
		return SchemeDescriptor{}, err
	}

	if codec.BlockLength() < m.format.HeaderLength() {
		return SchemeDescriptor{}, fmt.Errorf("%w: %s block of %d bytes can't hold a %d byte header",
			ErrSchemeNotSupported, scheme, codec.BlockLength(), m.format.HeaderLength())
	}

	return NewSchemeDescriptor(codec, mpduLength, m.frameCheck), nil
}

// busy must be called with configMu held for writing.
func (m *MAC) busy() error {
	m.txMu.Lock()
	var pending = m.tx.pending()
	m.txMu.Unlock()

	m.rxMu.Lock()
	var receiving = m.rx.inProgress()
	var received = m.rx.received
	m.rxMu.Unlock()

	if pending > 0 {
		return fmt.Errorf("%w: %d MPDUs not yet transmitted", ErrOperationInProgress, pending)
	}

	if receiving {
		return fmt.Errorf("%w: reassembly has %d MPDUs", ErrOperationInProgress, received)
	}

	return nil
}

func (m *MAC) ErrorCorrectionScheme() ErrorCorrectionScheme {
	m.configMu.RLock()
	defer m.configMu.RUnlock()

	return m.desc.Scheme()
}

func (m *MAC) SetErrorCorrectionScheme(scheme ErrorCorrectionScheme) error {
	m.configMu.Lock()
	defer m.configMu.Unlock()

	if err := m.busy(); err != nil {
		return err
	}

	var desc, err = m.describe(scheme, m.rfMode)
	if err != nil {
		return err
	}

	m.desc = desc
	m.logger.Info("Error correction changed", "scheme", scheme)

	return nil
}

func (m *MAC) RFModeNumber() RFModeNumber {
	m.configMu.RLock()
	defer m.configMu.RUnlock()

	return m.rfMode.Number
}

func (m *MAC) RFMode() RFMode {
	m.configMu.RLock()
	defer m.configMu.RUnlock()

	return m.rfMode
}

func (m *MAC) SetRFModeNumber(n RFModeNumber) error {
	var mode, err = LookupRFMode(n)
	if err != nil {
		return err
	}

	m.configMu.Lock()
	defer m.configMu.Unlock()

	if err := m.busy(); err != nil {
		return err
	}

	desc, err := m.describe(m.desc.Scheme(), mode)
	if err != nil {
		return err
	}

	m.rfMode = mode
	m.desc = desc
	m.logger.Info("RF mode changed", "rf_mode", int(n), "data_rate", mode.DataRate)

	return nil
}

// Descriptor returns the current layout rules.
func (m *MAC) Descriptor() SchemeDescriptor {
	m.configMu.RLock()
	defer m.configMu.RUnlock()

	return m.desc
}

func (m *MAC) MPDUPayloadLength() int {
	m.configMu.RLock()
	defer m.configMu.RUnlock()

	return m.desc.MPDUPayloadLength()
}

/*-------------------------------------------------------------------
 *
 * Name:	ReceiveCSPPacket
 *
 * Purpose:	Encode a packet into MPDUs ready for transmission.
 *
 * Inputs:	packet	- Complete packet image, header included.
 *
 * Returns:	nil if the packet was encoded.  Nothing changes if it
 *		was rejected.
 *
 * Description:	MPDUs of an earlier packet not yet taken with NextMPDU
 *		are thrown away.
 *
 *---------------------------------------------------------------*/

func (m *MAC) ReceiveCSPPacket(packet []byte) error {
	m.configMu.RLock()
	defer m.configMu.RUnlock()

	m.txMu.Lock()
	defer m.txMu.Unlock()

	if err := validatePacket(m.format, packet); err != nil {
		m.txStats.PacketsRejected++

		return err
	}

	var discarded, err = m.tx.load(m.desc, packet)
	if discarded > 0 {
		m.txStats.MPDUsDiscarded += uint64(discarded) //nolint:gosec
		m.logger.Warn("Replaced packet with MPDUs still pending", "discarded", discarded)
	}

	if err != nil {
		return err
	}

	m.txStats.PacketsEncoded++
	m.txStats.MPDUsProduced += uint64(m.tx.numMPDUs) //nolint:gosec

	m.logger.Debug("Packet encoded", "length", len(packet), "scheme", m.desc.Scheme(), "mpdus", m.tx.numMPDUs)

	return nil
}

// NumMPDUsInCSPPacket is how many MPDUs ReceiveCSPPacket would produce.
func (m *MAC) NumMPDUsInCSPPacket(packet []byte) int {
	m.configMu.RLock()
	defer m.configMu.RUnlock()

	return m.desc.NumMPDUs(len(packet))
}

// MPDUPayloadsBuffer is the MPDUs of the most recent packet, back to back.
// It is only valid until the next ReceiveCSPPacket.
func (m *MAC) MPDUPayloadsBuffer() []byte {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	return m.tx.mpdus
}

func (m *MAC) MPDUPayloadsBufferLength() int {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	return len(m.tx.mpdus)
}

// NextMPDU returns a copy of the next MPDU to transmit, false when there are
// no more.
func (m *MAC) NextMPDU() ([]byte, bool) {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	return m.tx.nextMPDU()
}

func (m *MAC) PendingMPDUs() int {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	return m.tx.pending()
}

// DiscardMPDUs marks every remaining MPDU as sent.  For callers that used
// MPDUPayloadsBuffer directly.
func (m *MAC) DiscardMPDUs() int {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	return m.tx.discard()
}

/*-------------------------------------------------------------------
 *
 * Name:	ProcessUHFPacket
 *
 * Purpose:	Accept one received MPDU.
 *
 * Inputs:	payload	- Exactly MPDUPayloadLength bytes.
 *
 * Returns:	NeedMoreFragments, PacketReady or PacketReadyResubmit.
 *
 *		ErrMalformedFragment if the length is wrong.  The
 *		fragment is ignored and reassembly carries on.
 *
 *		*DecodeError if the packet was abandoned.  The receiver
 *		is idle again and the next MPDU starts a new packet.
 *
 *---------------------------------------------------------------*/

func (m *MAC) ProcessUHFPacket(payload []byte) (Outcome, error) { //nolint:ireturn
	m.configMu.RLock()
	defer m.configMu.RUnlock()

	m.rxMu.Lock()
	defer m.rxMu.Unlock()

	if len(payload) != m.desc.MPDUPayloadLength() {
		m.rxStats.FragmentsMalformed++

		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrMalformedFragment, len(payload), m.desc.MPDUPayloadLength())
	}

	m.rxStats.FragmentsReceived++

	var outcome, err = m.rx.process(m.desc, m.format, payload)
	if err != nil {
		m.rxStats.DecodeFailures++
		m.logger.Warn("Packet dropped", "err", err)

		return nil, err
	}

	switch o := outcome.(type) {
	case PacketReady:
		m.rxStats.PacketsDecoded++
		m.rxStats.SymbolsCorrected += uint64(o.CorrectedErrors) //nolint:gosec
		m.logger.Debug("Packet reassembled", "length", len(o.Packet), "corrected", o.CorrectedErrors)
	case PacketReadyResubmit:
		m.rxStats.PacketsDecoded++
		m.rxStats.PacketsResubmitted++
		m.rxStats.SymbolsCorrected += uint64(o.CorrectedErrors) //nolint:gosec
		m.logger.Debug("Packet reassembled late", "length", len(o.Packet), "corrected", o.CorrectedErrors, "resubmit", len(o.Resubmit))
	}

	return outcome, nil
}

// RawCSPPacket is the MAC's own copy of the most recently reconstructed
// packet.  It is overwritten by the next one.
func (m *MAC) RawCSPPacket() []byte {
	m.rxMu.Lock()
	defer m.rxMu.Unlock()

	return m.rx.packet
}

// SetSNREstimate records a channel SNR hint (dB) for the decoder.
func (m *MAC) SetSNREstimate(snr float32) {
	m.rxMu.Lock()
	defer m.rxMu.Unlock()

	m.rx.snr = snr
}

func (m *MAC) SNREstimate() float32 {
	m.rxMu.Lock()
	defer m.rxMu.Unlock()

	return m.rx.snr
}

func (m *MAC) ReassemblyInProgress() bool {
	m.rxMu.Lock()
	defer m.rxMu.Unlock()

	return m.rx.inProgress()
}

// AbandonReassembly drops a partly received packet.  It returns the number
// of MPDUs thrown away.
func (m *MAC) AbandonReassembly() int {
	m.rxMu.Lock()
	defer m.rxMu.Unlock()

	var n = IfThenElse(m.rx.inProgress(), m.rx.received, 0)
	if n > 0 {
		m.logger.Info("Reassembly abandoned", "mpdus", n)
	}
	m.rx.reset()

	return n
}

func (m *MAC) Stats() Stats {
	m.txMu.Lock()
	var s = m.txStats
	m.txMu.Unlock()

	m.rxMu.Lock()
	s.FragmentsReceived = m.rxStats.FragmentsReceived
	s.FragmentsMalformed = m.rxStats.FragmentsMalformed
	s.PacketsDecoded = m.rxStats.PacketsDecoded
	s.PacketsResubmitted = m.rxStats.PacketsResubmitted
	s.DecodeFailures = m.rxStats.DecodeFailures
	s.SymbolsCorrected = m.rxStats.SymbolsCorrected
	m.rxMu.Unlock()

	return s
}

// MPDUs returns copies of every MPDU of the most recent packet without
// marking them sent.
func (m *MAC) MPDUs() [][]byte {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	var out = make([][]byte, 0, m.tx.numMPDUs)
	for i := range m.tx.numMPDUs {
		out = append(out, slices.Clone(m.tx.mpdus[i*m.tx.mpduLength:(i+1)*m.tx.mpduLength]))
	}

	return out
}
