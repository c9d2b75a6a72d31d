package server

import (
	"context"
	"time"

	"tunnelcore/domain/protocol"
	"tunnelcore/infrastructure/control"
	"tunnelcore/infrastructure/ipvalidate"
	"tunnelcore/infrastructure/session"
	"tunnelcore/infrastructure/telemetry/trafficstats"
	"tunnelcore/infrastructure/wire"
)

// runDataPlane reads bytes off sess's stream, drains complete records,
// decrypts and validates them, and forwards valid packets to the Datagram
// Device. Invalid packets are dropped and logged; the session stays alive.
// A stream EOF or I/O error ends only this session.
func (e *Engine) runDataPlane(ctx context.Context, sess *session.Session) {
	recorder := trafficstats.NewRecorder()
	defer recorder.Flush()
	defer e.closeSession(ctx, sess, "data plane ended")

	readBuf := make([]byte, protocol.MTU+64)
	for {
		if ctx.Err() != nil {
			return
		}
		n, err := sess.Recv(readBuf)
		if n > 0 {
			sess.Buf.Append(readBuf[:n])
			recorder.RecordReceived(uint64(n))
		}
		if err != nil {
			return
		}

		for {
			record, ok, err := sess.Buf.ExtractRecord()
			if err != nil {
				e.logger.Warnf("server: session %s protocol error: %v", sess.Token, err)
				return
			}
			if ok {
				e.handleInboundRecord(ctx, sess, record)
				continue
			}

			msgType, payload, ok, err := sess.Buf.ExtractControlMessage()
			if err != nil {
				e.logger.Warnf("server: session %s protocol error: %v", sess.Token, err)
				return
			}
			if !ok {
				break
			}
			if disconnect := e.handleControlMessage(sess, msgType, payload); disconnect {
				return
			}
		}
	}
}

// handleControlMessage answers an in-band control frame received alongside
// the data plane: Ping gets a Pong, Disconnect ends the session, and a
// RekeyInit/RekeyAck pair drives the session's rekey controller. It reports
// whether the caller should stop reading from this session.
func (e *Engine) handleControlMessage(sess *session.Session, msgType protocol.MessageType, payload []byte) (disconnect bool) {
	switch msgType {
	case protocol.Ping:
		ping, err := control.DecodePing(payload)
		if err != nil {
			e.logger.Debugf("server: session %s dropped malformed ping: %v", sess.Token, err)
			return false
		}
		pongPayload, err := control.EncodePong(ping.Timestamp, time.Now().Unix())
		if err != nil {
			return false
		}
		framed, err := wire.FrameControlMessage(protocol.Pong, pongPayload)
		if err != nil {
			return false
		}
		if err := sess.SendBytes(framed); err != nil {
			e.logger.Debugf("server: session %s pong send failed: %v", sess.Token, err)
		}
	case protocol.Disconnect:
		reason, err := control.DecodeDisconnect(payload)
		if err != nil {
			e.logger.Debugf("server: session %s dropped malformed disconnect: %v", sess.Token, err)
			return false
		}
		e.logger.Infof("server: session %s disconnected by peer: %s", sess.Token, reason.Reason)
		return true
	case protocol.RekeyInit:
		init, err := control.DecodeRekeyInit(payload)
		if err != nil {
			e.logger.Warnf("server: session %s dropped malformed rekey init: %v", sess.Token, err)
			return false
		}
		if err := sess.Rekey.OnRekeyInit(init.NewMasterKey); err != nil {
			e.logger.Warnf("server: session %s rekey init failed: %v", sess.Token, err)
			return false
		}
		ackPayload, err := control.EncodeRekeyAck(true)
		if err != nil {
			return false
		}
		framed, err := wire.FrameControlMessage(protocol.RekeyAck, ackPayload)
		if err != nil {
			return false
		}
		if err := sess.SendBytes(framed); err != nil {
			e.logger.Debugf("server: session %s rekey ack send failed: %v", sess.Token, err)
			return false
		}
		sess.Rekey.AckSent()
	case protocol.RekeyAck:
		ack, err := control.DecodeRekeyAck(payload)
		if err != nil {
			e.logger.Warnf("server: session %s dropped malformed rekey ack: %v", sess.Token, err)
			return false
		}
		if err := sess.Rekey.OnRekeyAck(ack.Applied); err != nil {
			e.logger.Warnf("server: session %s rekey ack failed: %v", sess.Token, err)
		}
	default:
		e.logger.Debugf("server: session %s unexpected control message %v during data plane", sess.Token, msgType)
	}
	return false
}

func (e *Engine) handleInboundRecord(ctx context.Context, sess *session.Session, record []byte) {
	plaintext, err := sess.Recv.Decrypt(record)
	if err != nil {
		e.logger.Debugf("server: session %s dropped record: %v", sess.Token, err)
		return
	}
	sess.RecordPacketReceived()

	if err := ipvalidate.Validate(plaintext); err != nil {
		e.logger.Debugf("server: session %s dropped invalid ip packet: %v", sess.Token, err)
		return
	}
	src, err := ipvalidate.SourceAddr(plaintext)
	if err != nil || !e.policy.IsSourceAllowed(sess.VirtualIP, src) {
		e.logger.Warnf("server: session %s dropped packet with disallowed source %v", sess.Token, src)
		return
	}

	if err := e.device.Write(ctx, plaintext); err != nil {
		e.logger.Warnf("server: session %s datagram device write failed: %v", sess.Token, err)
	}
}

func (e *Engine) closeSession(ctx context.Context, sess *session.Session, reason string) {
	if _, err := e.registry.Remove(sess.Token); err != nil {
		return // already removed, e.g. by the reaper racing this same close
	}
	sess.Close(reason)
	counters := sess.Counters()
	if err := e.store.UpdateTraffic(ctx, sess.Token, counters.BytesSent, counters.BytesReceived); err != nil {
		e.logger.Debugf("server: session %s final traffic sync failed: %v", sess.Token, err)
	}
	if err := e.store.Terminate(ctx, sess.Token, reason); err != nil {
		e.logger.Debugf("server: session %s store terminate failed: %v", sess.Token, err)
	}
	if err := e.allocator.Release(sess.VirtualIP); err != nil {
		e.logger.Warnf("server: release virtual ip %v: %v", sess.VirtualIP, err)
	}
	e.logger.Infof("server: session %s closed: %s", sess.Token, reason)
}

// outboundLoop pulls packets from the Datagram Device and routes each to
// the session owning its destination virtual IP, encrypting and framing it
// before writing. A packet for an address with no active session is
// dropped.
func (e *Engine) outboundLoop(ctx context.Context) error {
	recorder := trafficstats.NewRecorder()
	defer recorder.Flush()

	for {
		packet, err := e.device.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			e.logger.Warnf("server: datagram device read failed: %v", err)
			continue
		}
		if err := ipvalidate.Validate(packet); err != nil {
			continue
		}
		dest, err := ipvalidate.DestAddr(packet)
		if err != nil {
			continue
		}
		sess, err := e.registry.GetByIP(dest)
		if err != nil {
			continue // no session owns this address right now
		}

		record, err := sess.Send.Encrypt(packet)
		if err != nil {
			e.logger.Warnf("server: session %s encrypt failed: %v", sess.Token, err)
			e.closeSession(ctx, sess, "send counter overflow")
			continue
		}
		framed, err := wire.FrameRecord(record)
		if err != nil {
			continue
		}
		if err := sess.SendBytes(framed); err != nil {
			e.logger.Debugf("server: session %s send failed: %v", sess.Token, err)
			continue
		}
		recorder.RecordSent(uint64(len(framed)))
	}
}
