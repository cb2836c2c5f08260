package flags

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func TestMerge(t *testing.T) {
	a := &cli.StringFlag{Name: "a"}
	b := &cli.IntFlag{Name: "b"}
	c := &cli.BoolFlag{Name: "c"}
	assert.Equal(t, []cli.Flag{a, b, c}, Merge([]cli.Flag{a}, nil, []cli.Flag{b, c}))
	assert.Empty(t, Merge())
}

func TestMigrateGlobalFlags(t *testing.T) {
	var got string
	app := NewApp("test")
	app.Flags = []cli.Flag{&cli.StringFlag{Name: "name"}}
	app.Commands = []*cli.Command{{
		Name:  "greet",
		Flags: []cli.Flag{&cli.StringFlag{Name: "name"}},
		Action: func(ctx *cli.Context) error {
			got = ctx.String("name")
			return nil
		},
	}}
	require.NoError(t, app.Run([]string{"test", "--name", "global", "greet"}))
	assert.Equal(t, "global", got)
}
