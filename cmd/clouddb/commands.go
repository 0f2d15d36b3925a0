package main

import (
	"bufio"
	"clouddb/internal/core"
	"clouddb/internal/service"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli"
	"golang.org/x/term"
)

// actionDecorator opens the app around a command and closes it afterwards.
func actionDecorator(fn func(ctx context.Context, a *app, c *cli.Context) error) func(*cli.Context) error {
	return func(c *cli.Context) error {
		a, err := openApp(true)
		if err != nil {
			return err
		}
		defer a.Close()
		return fn(context.Background(), a, c)
	}
}

func printJSON(v interface{}) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}

// stdinLines is shared by every prompt so lines buffered by one read are
// still there for the next.
var (
	stdinLines *bufio.Reader
	stdinFile  *os.File
)

func stdinReader() *bufio.Reader {
	if stdinLines == nil || stdinFile != os.Stdin {
		stdinFile = os.Stdin
		stdinLines = bufio.NewReader(os.Stdin)
	}
	return stdinLines
}

// readPassword prompts without echo on a terminal and reads a plain line
// otherwise.
func readPassword(prompt string) (string, error) {
	fmt.Print(prompt)
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		b, err := term.ReadPassword(fd)
		fmt.Println() // newline after hidden input
		return string(b), err
	}
	line, err := stdinReader().ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func confirmPassword() (string, error) {
	password, err := readPassword("New password: ")
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	confirm, err := readPassword("Confirm password: ")
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	if password != confirm {
		return "", errors.New("passwords do not match")
	}
	if password == "" {
		return "", errors.New("password cannot be empty")
	}
	return password, nil
}

func required(c *cli.Context, names ...string) error {
	for _, n := range names {
		if c.String(n) == "" {
			return fmt.Errorf("%w: --%s", core.ErrMissingFields, n)
		}
	}
	return nil
}

// --- Identity ---

var signUpCommand = cli.Command{
	Name:  "signup",
	Usage: "Create an account and sign in.",
	Flags: []cli.Flag{
		cli.StringFlag{Name: "email", Usage: "account email"},
		cli.StringFlag{Name: "password", Usage: "prompted for when omitted"},
		cli.StringFlag{Name: "name", Usage: "display name, defaults to the email's local part"},
	},
	Action: actionDecorator(signUp),
}

func signUp(ctx context.Context, a *app, c *cli.Context) error {
	password := c.String("password")
	if password == "" {
		var err error
		if password, err = confirmPassword(); err != nil {
			return err
		}
	}
	_, user, err := a.auth.SignUp(ctx, strings.TrimSpace(c.String("email")), password, c.String("name"))
	if err != nil {
		return err
	}
	return printJSON(user.Public())
}

var signInCommand = cli.Command{
	Name:  "signin",
	Usage: "Sign in with email and password.",
	Flags: []cli.Flag{
		cli.StringFlag{Name: "email", Usage: "account email"},
		cli.StringFlag{Name: "password", Usage: "prompted for when omitted"},
	},
	Action: actionDecorator(signIn),
}

func signIn(ctx context.Context, a *app, c *cli.Context) error {
	password := c.String("password")
	if password == "" {
		var err error
		if password, err = readPassword("Password: "); err != nil {
			return err
		}
	}
	_, user, err := a.auth.SignIn(ctx, strings.TrimSpace(c.String("email")), password)
	if err != nil {
		return err
	}
	return printJSON(user.Public())
}

var signOutCommand = cli.Command{
	Name:  "signout",
	Usage: "Forget the signed-in session.",
	Action: actionDecorator(func(ctx context.Context, a *app, c *cli.Context) error {
		s, err := a.auth.Resume(ctx)
		if err != nil {
			return err
		}
		return a.auth.SignOut(ctx, s)
	}),
}

var whoAmICommand = cli.Command{
	Name:  "whoami",
	Usage: "Show the signed-in user.",
	Action: actionDecorator(func(ctx context.Context, a *app, c *cli.Context) error {
		s, err := a.session(ctx)
		if err != nil {
			return err
		}
		user, err := a.auth.CurrentUser(ctx, s)
		if err != nil {
			return err
		}
		return printJSON(user.Public())
	}),
}

var passwdCommand = cli.Command{
	Name:  "passwd",
	Usage: "Change the signed-in user's password (interactive).",
	Action: actionDecorator(func(ctx context.Context, a *app, c *cli.Context) error {
		s, err := a.session(ctx)
		if err != nil {
			return err
		}
		password, err := confirmPassword()
		if err != nil {
			return err
		}
		if err := a.auth.UpdatePassword(ctx, s, password); err != nil {
			return err
		}
		fmt.Println("Password updated.")
		return nil
	}),
}

var resetPasswordCommand = cli.Command{
	Name:  "reset-password",
	Usage: "Reset any user's password (interactive, operator only).",
	Flags: []cli.Flag{
		cli.StringFlag{Name: "email, u", Usage: "account to reset"},
	},
	Action: actionDecorator(func(ctx context.Context, a *app, c *cli.Context) error {
		if err := required(c, "email"); err != nil {
			return err
		}
		password, err := confirmPassword()
		if err != nil {
			return err
		}
		if err := a.auth.ResetPassword(ctx, c.String("email"), password); err != nil {
			return fmt.Errorf("failed to reset password: %w", err)
		}
		fmt.Printf("Password for user '%s' has been reset successfully.\n", c.String("email"))
		return nil
	}),
}

// --- Databases and tables ---

var dbCommand = cli.Command{
	Name:  "db",
	Usage: "Manage your databases.",
	Subcommands: []cli.Command{
		{
			Name:  "create",
			Usage: "Create a database and its first API key.",
			Flags: []cli.Flag{
				cli.StringFlag{Name: "name"},
				cli.StringFlag{Name: "description"},
			},
			Action: actionDecorator(func(ctx context.Context, a *app, c *cli.Context) error {
				s, err := a.session(ctx)
				if err != nil {
					return err
				}
				created, err := a.schema.CreateDatabase(ctx, s, c.String("name"), c.String("description"))
				if err != nil {
					return err
				}
				return printJSON(created)
			}),
		},
		{
			Name:  "list",
			Usage: "List your databases.",
			Action: actionDecorator(func(ctx context.Context, a *app, c *cli.Context) error {
				s, err := a.session(ctx)
				if err != nil {
					return err
				}
				dbs, err := a.schema.ListDatabases(ctx, s)
				if err != nil {
					return err
				}
				return printJSON(dbs)
			}),
		},
		{
			Name:  "get",
			Usage: "Show one database with its tables.",
			Flags: []cli.Flag{cli.StringFlag{Name: "id"}},
			Action: actionDecorator(func(ctx context.Context, a *app, c *cli.Context) error {
				s, err := a.session(ctx)
				if err != nil {
					return err
				}
				db, err := a.schema.GetDatabase(ctx, s, c.String("id"))
				if err != nil {
					return err
				}
				return printJSON(db)
			}),
		},
		{
			Name:  "update",
			Usage: "Rename, describe or archive a database.",
			Flags: []cli.Flag{
				cli.StringFlag{Name: "id"},
				cli.StringFlag{Name: "name"},
				cli.StringFlag{Name: "description"},
				cli.StringFlag{Name: "status", Usage: "active or archived"},
			},
			Action: actionDecorator(func(ctx context.Context, a *app, c *cli.Context) error {
				s, err := a.session(ctx)
				if err != nil {
					return err
				}
				var upd service.DatabaseUpdate
				for flag, dst := range map[string]**string{
					"name": &upd.Name, "description": &upd.Description, "status": &upd.Status,
				} {
					if c.IsSet(flag) {
						v := c.String(flag)
						*dst = &v
					}
				}
				db, err := a.schema.UpdateDatabase(ctx, s, c.String("id"), upd)
				if err != nil {
					return err
				}
				return printJSON(db)
			}),
		},
		{
			Name:  "delete",
			Usage: "Delete a database with its tables, keys and logs.",
			Flags: []cli.Flag{cli.StringFlag{Name: "id"}},
			Action: actionDecorator(func(ctx context.Context, a *app, c *cli.Context) error {
				s, err := a.session(ctx)
				if err != nil {
					return err
				}
				return a.schema.DeleteDatabase(ctx, s, c.String("id"))
			}),
		},
	},
}

var tableCommand = cli.Command{
	Name:  "table",
	Usage: "Manage tables and rows.",
	Subcommands: []cli.Command{
		{
			Name:  "create",
			Usage: "Create a table.",
			Flags: []cli.Flag{
				cli.StringFlag{Name: "db"},
				cli.StringFlag{Name: "name"},
				cli.StringSliceFlag{
					Name:  "column",
					Usage: "name:type[:null][=default], repeatable",
				},
			},
			Action: actionDecorator(func(ctx context.Context, a *app, c *cli.Context) error {
				s, err := a.session(ctx)
				if err != nil {
					return err
				}
				defs := make([]core.ColumnDef, 0, len(c.StringSlice("column")))
				for _, raw := range c.StringSlice("column") {
					defs = append(defs, parseColumn(raw))
				}
				t, err := a.schema.CreateTable(ctx, s, c.String("db"), c.String("name"), defs)
				if err != nil {
					return err
				}
				return printJSON(t)
			}),
		},
		{
			Name:  "delete",
			Usage: "Delete a table and its rows.",
			Flags: []cli.Flag{
				cli.StringFlag{Name: "db"},
				cli.StringFlag{Name: "id"},
			},
			Action: actionDecorator(func(ctx context.Context, a *app, c *cli.Context) error {
				s, err := a.session(ctx)
				if err != nil {
					return err
				}
				return a.schema.DeleteTable(ctx, s, c.String("db"), c.String("id"))
			}),
		},
		{
			Name:  "rows",
			Usage: "List a table's rows.",
			Flags: []cli.Flag{
				cli.StringFlag{Name: "db"},
				cli.StringFlag{Name: "table"},
				cli.StringFlag{Name: "filters", Usage: "JSON object of equality filters"},
			},
			Action: actionDecorator(func(ctx context.Context, a *app, c *cli.Context) error {
				s, err := a.session(ctx)
				if err != nil {
					return err
				}
				filters, err := objectFlag(c, "filters")
				if err != nil {
					return err
				}
				rows, err := a.rows.SelectRows(ctx, s, c.String("db"), c.String("table"), filters)
				if err != nil {
					return err
				}
				return printJSON(rows)
			}),
		},
	},
}

// parseColumn reads name:type[:null][=default]. Type validation is left to
// CreateTable.
func parseColumn(raw string) core.ColumnDef {
	var def core.ColumnDef
	head := raw
	if i := strings.Index(raw, "="); i >= 0 {
		dv := raw[i+1:]
		def.DefaultValue = &dv
		head = raw[:i]
	}
	parts := strings.Split(head, ":")
	def.Name = parts[0]
	if len(parts) > 1 {
		def.DataType = parts[1]
	}
	if len(parts) > 2 {
		switch strings.ToLower(parts[2]) {
		case "null", "nullable":
			def.IsNullable = true
		}
	}
	return def
}

func objectFlag(c *cli.Context, name string) (*core.Object, error) {
	raw := c.String(name)
	if raw == "" {
		return nil, nil
	}
	o, err := core.ParseObject([]byte(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: --%s: %v", core.ErrInvalidPayload, name, err)
	}
	return o, nil
}

// --- Keys, queries, audit ---

var keyCommand = cli.Command{
	Name:  "key",
	Usage: "Manage API keys.",
	Subcommands: []cli.Command{
		{
			Name:  "list",
			Flags: []cli.Flag{cli.StringFlag{Name: "db"}},
			Action: actionDecorator(func(ctx context.Context, a *app, c *cli.Context) error {
				s, err := a.session(ctx)
				if err != nil {
					return err
				}
				keys, err := a.keys.ListKeys(ctx, s, c.String("db"))
				if err != nil {
					return err
				}
				return printJSON(keys)
			}),
		},
		{
			Name: "create",
			Flags: []cli.Flag{
				cli.StringFlag{Name: "db"},
				cli.StringFlag{Name: "name"},
			},
			Action: actionDecorator(func(ctx context.Context, a *app, c *cli.Context) error {
				s, err := a.session(ctx)
				if err != nil {
					return err
				}
				key, err := a.keys.CreateKey(ctx, s, c.String("db"), c.String("name"))
				if err != nil {
					return err
				}
				return printJSON(key)
			}),
		},
		keyToggle("enable", true),
		keyToggle("disable", false),
		{
			Name:  "delete",
			Flags: []cli.Flag{cli.StringFlag{Name: "id"}},
			Action: actionDecorator(func(ctx context.Context, a *app, c *cli.Context) error {
				s, err := a.session(ctx)
				if err != nil {
					return err
				}
				return a.keys.DeleteKey(ctx, s, c.String("id"))
			}),
		},
	},
}

func keyToggle(name string, active bool) cli.Command {
	return cli.Command{
		Name:  name,
		Flags: []cli.Flag{cli.StringFlag{Name: "id"}},
		Action: actionDecorator(func(ctx context.Context, a *app, c *cli.Context) error {
			s, err := a.session(ctx)
			if err != nil {
				return err
			}
			key, err := a.keys.SetKeyActive(ctx, s, c.String("id"), active)
			if err != nil {
				return err
			}
			return printJSON(key)
		}),
	}
}

var queryCommand = cli.Command{
	Name:  "query",
	Usage: "Run one API-key query, exactly as the HTTP endpoint would.",
	Flags: []cli.Flag{
		cli.StringFlag{Name: "key", Usage: "API key", EnvVar: "CLOUDDB_API_KEY"},
		cli.StringFlag{Name: "action", Usage: "select, insert, update or delete"},
		cli.StringFlag{Name: "table"},
		cli.StringFlag{Name: "data", Usage: "JSON object"},
		cli.StringFlag{Name: "filters", Usage: "JSON object"},
		cli.StringFlag{Name: "row"},
	},
	Action: actionDecorator(func(ctx context.Context, a *app, c *cli.Context) error {
		data, err := objectFlag(c, "data")
		if err != nil {
			return err
		}
		filters, err := objectFlag(c, "filters")
		if err != nil {
			return err
		}
		res, err := a.gateway.Execute(ctx, service.QueryRequest{
			ApiKey:  c.String("key"),
			Action:  c.String("action"),
			Table:   c.String("table"),
			Data:    data,
			Filters: filters,
			RowID:   c.String("row"),
		})
		if err != nil {
			return err
		}
		return printJSON(res)
	}),
}

var logsCommand = cli.Command{
	Name:  "logs",
	Usage: "Show your query logs, newest first.",
	Flags: []cli.Flag{
		cli.StringFlag{Name: "db"},
		cli.StringFlag{Name: "method"},
		cli.IntFlag{Name: "limit", Value: 50},
	},
	Action: actionDecorator(func(ctx context.Context, a *app, c *cli.Context) error {
		s, err := a.session(ctx)
		if err != nil {
			return err
		}
		logs, err := a.audit.ListLogs(ctx, s, service.LogQuery{
			DatabaseID: c.String("db"),
			Method:     c.String("method"),
			Limit:      c.Int("limit"),
		})
		if err != nil {
			return err
		}
		return printJSON(logs)
	}),
}

var strikesCommand = cli.Command{
	Name:  "strikes",
	Usage: "Review copyright strikes and account stats.",
	Subcommands: []cli.Command{
		{
			Name: "list",
			Action: actionDecorator(func(ctx context.Context, a *app, c *cli.Context) error {
				s, err := a.session(ctx)
				if err != nil {
					return err
				}
				strikes, err := a.audit.ListStrikes(ctx, s)
				if err != nil {
					return err
				}
				return printJSON(strikes)
			}),
		},
		{
			Name:  "dismiss",
			Flags: []cli.Flag{cli.StringFlag{Name: "id"}},
			Action: actionDecorator(func(ctx context.Context, a *app, c *cli.Context) error {
				s, err := a.session(ctx)
				if err != nil {
					return err
				}
				strike, err := a.audit.DismissStrike(ctx, s, c.String("id"))
				if err != nil {
					return err
				}
				return printJSON(strike)
			}),
		},
		{
			Name:  "resolve",
			Flags: []cli.Flag{cli.StringFlag{Name: "id"}},
			Action: actionDecorator(func(ctx context.Context, a *app, c *cli.Context) error {
				s, err := a.session(ctx)
				if err != nil {
					return err
				}
				strike, err := a.audit.ResolveStrike(ctx, s, c.String("id"))
				if err != nil {
					return err
				}
				return printJSON(strike)
			}),
		},
		{
			Name: "stats",
			Action: actionDecorator(func(ctx context.Context, a *app, c *cli.Context) error {
				s, err := a.session(ctx)
				if err != nil {
					return err
				}
				stats, err := a.audit.Stats(ctx, s)
				if err != nil {
					return err
				}
				return printJSON(stats)
			}),
		},
	},
}

// --- Snapshots ---

var exportCommand = cli.Command{
	Name:  "export",
	Usage: "Write the whole store as JSON.",
	Flags: []cli.Flag{
		cli.StringFlag{Name: "out", Usage: "file to write, stdout when omitted"},
	},
	Action: actionDecorator(func(ctx context.Context, a *app, c *cli.Context) error {
		b, err := a.snapshot.Export(ctx)
		if err != nil {
			return err
		}
		if out := c.String("out"); out != "" {
			return os.WriteFile(out, b, 0600)
		}
		_, err = os.Stdout.Write(append(b, '\n'))
		return err
	}),
}

var importCommand = cli.Command{
	Name:  "import",
	Usage: "Replace the whole store with a JSON snapshot.",
	Flags: []cli.Flag{
		cli.StringFlag{Name: "in", Usage: "snapshot file"},
	},
	Action: actionDecorator(func(ctx context.Context, a *app, c *cli.Context) error {
		if err := required(c, "in"); err != nil {
			return err
		}
		b, err := os.ReadFile(c.String("in"))
		if err != nil {
			return err
		}
		if err := a.snapshot.Import(ctx, b); err != nil {
			return err
		}
		fmt.Println("Snapshot imported.")
		return nil
	}),
}
