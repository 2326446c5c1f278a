package replay

import "asylum-lite/asylum"

// Command is a validated CommandSpec that can be applied to a live session.
type Command struct {
	nc normalizedCommand
}

func ParseCommand(c CommandSpec) (Command, error) {
	nc, err := normalizeCommand(0, c)
	if err != nil {
		return Command{}, err
	}
	return Command{nc: nc}, nil
}

func (c Command) Player() int { return c.nc.player }

// WithPlayer rebinds the command to the seat that actually sent it.
func (c Command) WithPlayer(id int) Command {
	c.nc.player = id
	return c
}

func (c Command) Apply(g *asylum.Game) error {
	return applyCommand(g, c.nc)
}

// Reason classifies an Apply error with the same codes tapes use.
func Reason(err error) string { return reasonFor(err) }
