package redis

import (
	"context"
	"fmt"
	"strings"

	goredis "github.com/redis/go-redis/v9"

	"github.com/mesh-intelligence/nosqlapi/pkg/types"
)

// Command is one raw Redis command, e.g. {"SET", key, value}. Keys are
// used as given; build them with Session.Key.
type Command []any

// Batch runs commands in one MULTI/EXEC transaction.
type Batch struct {
	types.BaseBatch[Command]
}

// NewBatch returns a batch bound to s.
func NewBatch(s *Session, cmds ...Command) *Batch {
	return &Batch{BaseBatch: types.NewBaseBatch[Command](s, cmds...)}
}

// Execute sends every command and returns their replies in order.
func (b *Batch) Execute(ctx context.Context) (*types.Result, error) {
	s, ok := b.Session().(*Session)
	if !ok {
		return nil, types.Errorf(types.ErrSession, "%T is not a redis session", b.Session())
	}
	if err := s.Check(); err != nil {
		return nil, err
	}
	for i, c := range b.Commands() {
		if len(c) == 0 {
			return nil, types.Errorf(types.ErrSession, "command %d is empty", i)
		}
	}

	cmds, err := s.client.TxPipelined(ctx, func(p goredis.Pipeliner) error {
		for _, c := range b.Commands() {
			p.Do(ctx, c...)
		}
		return nil
	})
	if err != nil {
		return nil, types.Wrap(types.ErrSession, err, "executing batch")
	}
	replies := make([]any, len(cmds))
	for i, c := range cmds {
		if cmd, ok := c.(*goredis.Cmd); ok {
			replies[i] = cmd.Val()
		}
	}
	s.log.Debug("batch executed", "commands", len(cmds))
	s.SetItemCount(len(cmds))
	return types.NewResponse[any](replies), nil
}

// aclArgs builds the ACL command for a user-management operation.
func aclArgs(op string, args ...string) []any {
	out := []any{"ACL"}
	switch op {
	case "list":
		out = append(out, "LIST")
	case "deluser":
		out = append(out, "DELUSER", args[0])
	default:
		out = append(out, "SETUSER")
		for _, a := range args {
			out = append(out, a)
		}
	}
	return out
}

func (s *Session) acl(ctx context.Context, what string, args []any) (*types.Result, error) {
	if err := s.Check(); err != nil {
		return nil, err
	}
	v, err := s.client.Do(ctx, args...).Result()
	if err != nil {
		return nil, types.Wrap(types.ErrSessionACL, err, what)
	}
	return types.NewResponse[any](v), nil
}

// ACL returns the server ACL rules.
func (s *Session) ACL(ctx context.Context) (*types.Result, error) {
	return s.acl(ctx, "listing ACL", aclArgs("list"))
}

// Grant allows user every command of the ACL category role on the keys
// of database.
func (s *Session) Grant(ctx context.Context, database, user, role string, params ...types.Params) (*types.Result, error) {
	return s.acl(ctx, "granting "+role, aclArgs("setuser", user, "~"+prefix(database)+"*", "+@"+strings.TrimPrefix(role, "@")))
}

// Revoke removes the ACL category role from user.
func (s *Session) Revoke(ctx context.Context, database, user, role string, params ...types.Params) (*types.Result, error) {
	return s.acl(ctx, "revoking "+role, aclArgs("setuser", user, "-@"+strings.TrimPrefix(role, "@")))
}

// NewUser creates an enabled user with password.
func (s *Session) NewUser(ctx context.Context, user, password string, params ...types.Params) (*types.Result, error) {
	return s.acl(ctx, fmt.Sprintf("creating user %s", user), aclArgs("setuser", user, "on", ">"+password))
}

// SetUser replaces the passwords of user.
func (s *Session) SetUser(ctx context.Context, user, password string, params ...types.Params) (*types.Result, error) {
	return s.acl(ctx, fmt.Sprintf("changing user %s", user), aclArgs("setuser", user, "resetpass", ">"+password))
}

// DeleteUser removes user.
func (s *Session) DeleteUser(ctx context.Context, user string, params ...types.Params) (*types.Result, error) {
	return s.acl(ctx, fmt.Sprintf("deleting user %s", user), aclArgs("deluser", user))
}
