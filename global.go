package nosqlapi

import (
	"context"
	"sync"

	"github.com/mesh-intelligence/nosqlapi/pkg/types"
)

// Process-wide slots written only by GlobalSession. Readers see the last
// write; concurrent writers race and the last one wins.
var (
	globalMu      sync.RWMutex
	globalConn    types.Connector
	globalSession types.Session
)

// GlobalSession connects conn and publishes it and the returned session as
// the process-wide connection and session. conn must implement
// types.Connector, otherwise ErrConnect is returned and the slots are left
// unchanged.
func GlobalSession(ctx context.Context, conn any) (types.Session, error) {
	c, ok := conn.(types.Connector)
	if !ok {
		return nil, types.Errorf(types.ErrConnect, "%T does not advertise Connect", conn)
	}
	s, err := c.Connect(ctx)
	if err != nil {
		return nil, types.Wrap(types.ErrConnect, err, "connecting global session")
	}

	globalMu.Lock()
	defer globalMu.Unlock()
	globalConn, globalSession = c, s
	return s, nil
}

// CurrentSession returns the process-wide session, or nil.
func CurrentSession() types.Session {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalSession
}

// CurrentConnection returns the process-wide connection, or nil.
func CurrentConnection() types.Connector {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalConn
}

// ResetGlobalSession clears both slots without closing anything.
func ResetGlobalSession() {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalConn, globalSession = nil, nil
}
