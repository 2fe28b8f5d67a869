package runtime

import (
	"context"
	"time"
)

// Msg is an application message. Input events arrive wrapped in EventMsg;
// everything else is defined by the application.
type Msg any

// Cmd is the effect requested by an update. Variants form a tagged union;
// nil means "no effect".
type Cmd interface {
	isCmd()
}

// QuitCmd terminates the loop after the current iteration.
type QuitCmd struct{}

// BatchCmd runs commands in unspecified order.
type BatchCmd []Cmd

// SequenceCmd runs commands strictly in order.
type SequenceCmd []Cmd

// MsgCmd re-enters update with a message.
type MsgCmd struct {
	Msg Msg
}

// TickCmd delivers a message after a delay.
type TickCmd struct {
	After time.Duration
	Fn    func(time.Time) Msg
}

// LogCmd appends bytes to the log stream through the terminal writer.
type LogCmd []byte

// PerformCmd runs work off the critical path and delivers its result as a
// message. On timeout the TimedOut message is delivered instead.
type PerformCmd struct {
	Run      func(ctx context.Context) Msg
	Timeout  time.Duration // 0 = runtime default
	TimedOut Msg
}

func (QuitCmd) isCmd()     {}
func (BatchCmd) isCmd()    {}
func (SequenceCmd) isCmd() {}
func (MsgCmd) isCmd()      {}
func (TickCmd) isCmd()     {}
func (LogCmd) isCmd()      {}
func (PerformCmd) isCmd()  {}

// Quit builds the loop-terminating command.
func Quit() Cmd {
	return QuitCmd{}
}

// Batch groups commands; nils are dropped.
func Batch(cmds ...Cmd) Cmd {
	out := make(BatchCmd, 0, len(cmds))
	for _, c := range cmds {
		if c != nil {
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// Sequence orders commands; nils are dropped.
func Sequence(cmds ...Cmd) Cmd {
	out := make(SequenceCmd, 0, len(cmds))
	for _, c := range cmds {
		if c != nil {
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// Tick delivers fn's message after d.
func Tick(d time.Duration, fn func(time.Time) Msg) Cmd {
	return TickCmd{After: d, Fn: fn}
}

// Log routes bytes to the writer's log stream.
func Log(b []byte) Cmd {
	return LogCmd(b)
}

// Perform runs fn asynchronously, delivering its result, or timedOut if the
// deadline passes first.
func Perform(fn func(ctx context.Context) Msg, timedOut Msg) Cmd {
	return PerformCmd{Run: fn, TimedOut: timedOut}
}
