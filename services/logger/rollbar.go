package logsvc

import (
	"fmt"
	"log"
	"strings"

	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/user"
)

// RollbarLogger reports to Rollbar and mirrors every entry to a std logger.
// Debug entries are dropped unless the app runs in debug mode.
type RollbarLogger struct {
	std      *log.Logger
	debug    bool
	hasToken bool
}

var _ core.Logger = (*RollbarLogger)(nil)

func NewRollbarLogger(std *log.Logger, conf *core.Config) *RollbarLogger {
	rollbar.SetToken(conf.RollbarToken)
	rollbar.SetEnvironment(conf.Env)
	rollbar.SetServerHost(conf.Server.Address)
	rollbar.SetServerRoot("github.com/trezcool/academia")
	rollbar.SetCodeVersion(conf.Build)
	rollbar.SetStackTracer(errors.StackTracer)
	rollbar.SetEnabled(conf.RollbarToken != "")
	return &RollbarLogger{std: std, debug: conf.Debug, hasToken: conf.RollbarToken != ""}
}

// Enable turns Rollbar reporting on or off; it stays off without a token.
// The std mirror is unaffected.
func (l *RollbarLogger) Enable(enabled bool) {
	rollbar.SetEnabled(enabled && l.hasToken)
}

// log splits args into Rollbar's (msg, error, extras) and the acting user.User.
func (l *RollbarLogger) log(level, msg string, args []interface{}) {
	var (
		usr    *user.User
		extras = make([]interface{}, 0, len(args)+1)
		lines  = []string{"[" + strings.ToUpper(level) + "] " + msg}
	)
	extras = append(extras, msg)
	for _, arg := range args {
		switch v := arg.(type) {
		case user.User:
			if usr == nil {
				u := v
				usr = &u
				lines = append(lines, "  user: "+v.ID+" <"+v.Email+">")
			}
		case error:
			extras = append(extras, v)
			lines = append(lines, "  error: "+v.Error())
		default:
			extras = append(extras, v)
			lines = append(lines, fmt.Sprintf("  %+v", v))
		}
	}

	if usr != nil {
		rollbar.SetPerson(usr.ID, usr.Name, usr.Email)
	} else {
		rollbar.ClearPerson()
	}
	rollbar.Log(level, extras...)
	for _, line := range lines {
		l.std.Println(line)
	}
}

func (l *RollbarLogger) Debug(msg string, args ...interface{}) {
	if l.debug {
		l.log(rollbar.DEBUG, msg, args)
	}
}

func (l *RollbarLogger) Info(msg string, args ...interface{}) {
	l.log(rollbar.INFO, msg, args)
}

func (l *RollbarLogger) Warn(msg string, args ...interface{}) {
	l.log(rollbar.WARN, msg, args)
}

func (l *RollbarLogger) Error(msg string, args ...interface{}) {
	l.log(rollbar.ERR, msg, args)
}

func (l *RollbarLogger) Fatal(msg string, args ...interface{}) {
	l.log(rollbar.CRIT, msg, args)
	rollbar.Wait()
	l.std.Fatal(msg)
}
