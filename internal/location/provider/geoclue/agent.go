// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package geoclue

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/godbus/dbus/v5"
)

const (
	DBusListNamesAddress = "org.freedesktop.DBus.ListNames"
	GeoClueAgentSuffix   = ".GeoClue2.DemoAgent"
)

// knownAgents are session bus names of GeoClue agents shipped by desktop environments.
var knownAgents = []string{
	"org.freedesktop.GeoClue2.DemoAgent",
	"org.gnome.Shell",
	"org.kde.plasma.geoclue",
}

// AgentRunning reports whether a GeoClue agent is registered on the session bus. Without an
// agent GeoClue refuses clients that are not allow-listed in its configuration.
func AgentRunning(ctx context.Context) (isRunning bool, err error) {
	conn, err := dbus.ConnectSessionBus(dbus.WithContext(ctx))
	if err != nil {
		return false, fmt.Errorf("failed to connect to session bus: %w", err)
	}
	defer func() {
		if closeErr := conn.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("failed to close session bus: %w", closeErr))
		}
	}()

	var list []string
	if err = conn.BusObject().CallWithContext(ctx, DBusListNamesAddress, 0).Store(&list); err != nil {
		return false, fmt.Errorf("failed to call DBus ListNames: %w", err)
	}
	return agentInList(list), nil
}

func agentInList(names []string) bool {
	for _, v := range names {
		if strings.HasSuffix(v, GeoClueAgentSuffix) {
			return true
		}
		for _, agent := range knownAgents {
			if strings.EqualFold(v, agent) {
				return true
			}
		}
	}
	return false
}
