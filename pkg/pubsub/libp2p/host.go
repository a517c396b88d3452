package libp2p

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/libp2p/go-libp2p"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/peerstore"
	"github.com/multiformats/go-multiaddr"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/bacalhau-project/contractnet/pkg/system"
)

const ContinuouslyConnectPeersLoopDelay = 10 * time.Second

// NewHost creates a new libp2p host listening on tcp. A port of 0 picks a random free port.
func NewHost(address string, port int, opts ...libp2p.Option) (host.Host, error) {
	if address == "" {
		address = "0.0.0.0"
	}
	listenAddr, err := multiaddr.NewMultiaddr(fmt.Sprintf("/ip4/%s/tcp/%d", address, port))
	if err != nil {
		return nil, NewConfigurationWrappedError(err, "invalid listen address %s:%d", address, port)
	}

	opts = append(opts, libp2p.ListenAddrs(listenAddr))
	h, err := libp2p.New(opts...)
	if err != nil {
		return nil, NewTransportWrappedError(err, "failed to start libp2p host on %s", listenAddr)
	}

	p2pAddresses, err := P2PAddresses(h)
	if err != nil {
		_ = h.Close()
		return nil, err
	}
	log.Info().
		Array("p2p-addresses", fmtStringerLoggerHelper[multiaddr.Multiaddr](p2pAddresses)).
		Stringer("host-id", h.ID()).
		Msgf("started libp2p host")

	return h, nil
}

// P2PAddresses returns the host's listen addresses with its peer id encapsulated,
// which is the form other agents pass as --peer.
func P2PAddresses(h host.Host) ([]multiaddr.Multiaddr, error) {
	p2pAddr, err := multiaddr.NewMultiaddr("/p2p/" + h.ID().String())
	if err != nil {
		return nil, err
	}
	return lo.Map(h.Addrs(), func(m multiaddr.Multiaddr, _ int) multiaddr.Multiaddr {
		return m.Encapsulate(p2pAddr)
	}), nil
}

// ParsePeers parses peer multiaddrs such as /ip4/1.2.3.4/tcp/1235/p2p/<peer-id>.
func ParsePeers(peers []string) ([]multiaddr.Multiaddr, error) {
	addrs := make([]multiaddr.Multiaddr, 0, len(peers))
	for _, p := range peers {
		addr, err := multiaddr.NewMultiaddr(p)
		if err != nil {
			return nil, NewConfigurationWrappedError(err, "invalid peer address %q", p)
		}
		if _, err = peer.AddrInfoFromP2pAddr(addr); err != nil {
			return nil, NewConfigurationWrappedError(err, "peer address %q must end with /p2p/<peer-id>", p)
		}
		addrs = append(addrs, addr)
	}
	return addrs, nil
}

// ConnectToPeersContinuously connects to the peers now and then keeps reconnecting
// until the cleanup manager runs.
func ConnectToPeersContinuously(ctx context.Context, cm *system.CleanupManager, h host.Host, peers []multiaddr.Multiaddr) {
	if len(peers) == 0 {
		return
	}
	if err := ConnectToPeers(ctx, h, peers); err != nil {
		log.Ctx(ctx).Warn().Err(err).Msgf("Error connecting to peers, retrying again in %s", ContinuouslyConnectPeersLoopDelay)
	}
	ticker := time.NewTicker(ContinuouslyConnectPeersLoopDelay)
	ctx, cancelFunction := context.WithCancel(ctx)
	cm.RegisterCallback(func() error {
		cancelFunction()
		return nil
	})
	log.Ctx(ctx).Debug().Msgf("Starting peer reconnection loop every %s", ContinuouslyConnectPeersLoopDelay)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				err := ConnectToPeers(ctx, h, peers)
				if err != nil {
					log.Ctx(ctx).Info().Msgf("Error connecting to peers: %s, retrying again in %s", err, ContinuouslyConnectPeersLoopDelay)
				}
			case <-ctx.Done():
				log.Ctx(ctx).Debug().Msgf("Reconnect loop stopped")
				return
			}
		}
	}()
}

// ConnectToPeers connects to every peer that is not already connected.
func ConnectToPeers(ctx context.Context, h host.Host, peers []multiaddr.Multiaddr) error {
	var errs *multierror.Error
	grouped := map[peer.ID][]multiaddr.Multiaddr{}

	// Group up the peers by ID, so we only connect to a peer once rather than multiple times
	for _, peerAddress := range peers {
		info, err := peer.AddrInfoFromP2pAddr(peerAddress)
		if err != nil {
			errs = multierror.Append(errs, err)
			log.Ctx(ctx).Warn().Err(err).Msgf("Error parsing peer address")
			continue
		}

		grouped[info.ID] = append(grouped[info.ID], info.Addrs...)
	}

	for id, addresses := range grouped {
		if len(h.Network().ConnsToPeer(id)) > 0 {
			continue
		}
		h.Peerstore().AddAddrs(id, addresses, peerstore.PermanentAddrTTL)
		err := h.Connect(ctx, peer.AddrInfo{
			ID:    id,
			Addrs: addresses,
		})
		if err != nil {
			errs = multierror.Append(errs, err)
			log.Ctx(ctx).Warn().Err(err).Stringer("peer", id).Msgf("Error connecting to peer, continuing...")
		} else {
			log.Ctx(ctx).Trace().
				Array("addresses", fmtStringerLoggerHelper[multiaddr.Multiaddr](addresses)).
				Stringer("peer", id).
				Msg("Libp2p bus connected to peer")
		}
	}
	if err := errs.ErrorOrNil(); err != nil {
		return NewTransportWrappedError(err, "libp2p bus had errors connecting to peers")
	}
	return nil
}

var _ zerolog.LogArrayMarshaler = fmtStringerLoggerHelper[fmt.Stringer]{}

type fmtStringerLoggerHelper[T fmt.Stringer] []T

func (m fmtStringerLoggerHelper[T]) MarshalZerologArray(a *zerolog.Array) {
	for _, address := range m {
		a.Str(address.String())
	}
}
