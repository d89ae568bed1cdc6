package cli

import "fmt"

type InitCmd struct{}

func (c *InitCmd) Run(ctx *Context) error {
	if err := ctx.Store.Init(); err != nil {
		return err
	}
	fmt.Printf("Initialized songday storage at: %s\n", ctx.Store.GetStatePath())
	fmt.Println("Set SPOTIFY_ID and SPOTIFY_SECRET (env or .env), then run 'songday poll'.")
	return nil
}
