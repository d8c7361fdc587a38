package uhfmac

/*------------------------------------------------------------------
 *
 * Purpose:   	Announce the KISS over TCP service using DNS-SD
 *
 * Description:
 *
 *     Ground station operators would rather select the MAC daemon from
 *     a list of automatically discovered TNCs on the local network than
 *     type in an address and port.
 *
 *     This uses the pure-Go github.com/brutella/dnssd package for
 *     mDNS/DNS-SD service announcement without requiring any system
 *     daemon or C library dependencies.
 */

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/brutella/dnssd"
	"github.com/charmbracelet/log"
)

const DNS_SD_SERVICE = "_kiss-tnc._tcp"

func dnsSDDefaultServiceName() string {
	var hostname, hostnameErr = os.Hostname()
	if hostnameErr != nil {
		return "UHF MAC"
	}

	// on some systems, an FQDN is returned; remove domain part
	hostname, _, _ = strings.Cut(hostname, ".")

	return "UHF MAC on " + hostname
}

// dnsSDService describes the announcement without touching the network.
func dnsSDService(name string, port int) (dnssd.Service, error) {
	if name == "" {
		name = dnsSDDefaultServiceName()
	}

	return dnssd.NewService(dnssd.Config{ //nolint:exhaustruct
		Name: name,
		Type: DNS_SD_SERVICE,
		Port: port,
	})
}

/*------------------------------------------------------------------
 *
 * Name:	AnnounceKISSService
 *
 * Purpose:	Announce the KISS TCP port until ctx is done.
 *
 * Inputs:	name	- Service instance name.  Empty for a default
 *			  based on the host name.
 *
 *		port	- TCP port of the KISS server.
 *
 * Description:	Returns once the responder is running.  Its errors are
 *		only logged.
 *
 *------------------------------------------------------------------*/

func AnnounceKISSService(ctx context.Context, name string, port int, logger *log.Logger) error {
	if logger == nil {
		logger = log.Default()
	}
	logger = logger.WithPrefix("dns-sd")

	var sv, svErr = dnsSDService(name, port)
	if svErr != nil {
		return fmt.Errorf("DNS-SD: failed to create service: %w", svErr)
	}

	var rp, rpErr = dnssd.NewResponder()
	if rpErr != nil {
		return fmt.Errorf("DNS-SD: failed to create responder: %w", rpErr)
	}

	var _, addErr = rp.Add(sv)
	if addErr != nil {
		return fmt.Errorf("DNS-SD: failed to add service: %w", addErr)
	}

	logger.Info("Announcing KISS TCP", "port", port, "name", sv.Name)

	go func() {
		var respondErr = rp.Respond(ctx)
		if respondErr != nil && ctx.Err() == nil {
			logger.Error("Responder error", "err", respondErr)
		}
	}()

	return nil
}
