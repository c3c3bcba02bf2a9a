package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/acolita/remotefs/internal/remotefs"
)

// runner executes one-shot operations and prints their results to out.
type runner struct {
	client    *remotefs.Client
	out       io.Writer
	maxBuffer int64
}

func (r *runner) run(op string, args []string) error {
	switch op {
	case "pwd":
		return r.pwd(args)
	case "ls":
		return r.ls(args)
	case "exists":
		return r.exists(args)
	case "stat":
		return r.stat(args)
	case "mkdir":
		return r.mkdir(args)
	case "rmdir":
		return r.rmdir(args)
	case "rm":
		if len(args) != 1 {
			return errUsage
		}
		return r.client.Delete(args[0])
	case "mv":
		if len(args) != 2 {
			return errUsage
		}
		return r.client.Rename(args[0], args[1])
	case "get":
		return r.get(args)
	case "put":
		if len(args) != 2 {
			return errUsage
		}
		return r.client.PutFile(args[0], args[1], remotefs.WriteOptions{})
	case "clean":
		return r.clean(args)
	}
	return fmt.Errorf("unknown operation %q", op)
}

func (r *runner) pwd(args []string) error {
	if len(args) != 0 {
		return errUsage
	}
	cwd, err := r.client.Cwd()
	if err != nil {
		return err
	}
	fmt.Fprintln(r.out, cwd)
	return nil
}

// ls hides dot entries unless -a is given.
func (r *runner) ls(args []string) error {
	all, args := flagged(args, "-a")
	if len(args) < 1 || len(args) > 2 {
		return errUsage
	}
	filter := remotefs.MatchAll()
	switch {
	case len(args) == 2:
		filter = remotefs.Glob(args[1])
	case !all:
		filter = remotefs.FilterFunc(func(name string) bool { return !strings.HasPrefix(name, ".") })
	}

	entries, err := r.client.List(args[0], filter)
	if err != nil {
		return err
	}
	r.printEntries(entries)
	return nil
}

func (r *runner) exists(args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	t, err := r.client.Exists(args[0])
	if err != nil {
		return err
	}
	if t == "" {
		fmt.Fprintln(r.out, "false")
		return nil
	}
	fmt.Fprintln(r.out, t)
	return nil
}

func (r *runner) stat(args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	st, err := r.client.Stat(args[0])
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(r.out, 0, 4, 1, ' ', 0)
	fmt.Fprintf(tw, "mode:\t%o\n", st.Mode)
	fmt.Fprintf(tw, "size:\t%d\n", st.Size)
	fmt.Fprintf(tw, "uid:\t%d\n", st.UID)
	fmt.Fprintf(tw, "gid:\t%d\n", st.GID)
	fmt.Fprintf(tw, "modified:\t%s\n", formatMillis(st.ModifyTime))
	fmt.Fprintf(tw, "accessed:\t%s\n", formatMillis(st.AccessTime))
	fmt.Fprintf(tw, "directory:\t%t\n", st.IsDirectory)
	fmt.Fprintf(tw, "file:\t%t\n", st.IsFile)
	fmt.Fprintf(tw, "symlink:\t%t\n", st.IsSymbolicLink)
	return tw.Flush()
}

func (r *runner) mkdir(args []string) error {
	recursive, args := flagged(args, "-r")
	if len(args) != 1 {
		return errUsage
	}
	return r.client.Mkdir(args[0], recursive)
}

func (r *runner) rmdir(args []string) error {
	recursive, args := flagged(args, "-r")
	if len(args) != 1 {
		return errUsage
	}
	return r.client.Rmdir(args[0], recursive)
}

// get writes to LOCAL when given, otherwise buffers the file and prints it.
func (r *runner) get(args []string) error {
	switch len(args) {
	case 1:
		data, err := r.client.Get(args[0], remotefs.ReadOptions{MaxBufferSize: r.maxBuffer})
		if err != nil {
			return err
		}
		_, err = r.out.Write(data)
		return err
	case 2:
		_, err := r.client.GetFile(args[0], args[1], remotefs.ReadOptions{})
		return err
	}
	return errUsage
}

func (r *runner) clean(args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return errUsage
	}
	var filter remotefs.Filter
	if len(args) == 2 {
		filter = remotefs.Glob(args[1])
	}
	remaining, err := r.client.ListAndCleanEmptyFiles(args[0], filter)
	if err != nil {
		return err
	}
	r.printEntries(remaining)
	return nil
}

func (r *runner) printEntries(entries []remotefs.Entry) {
	tw := tabwriter.NewWriter(r.out, 0, 4, 1, ' ', 0)
	for _, e := range entries {
		fmt.Fprintf(tw, "%s%s\t%d\t%d\t%d\t%s\t%s\n",
			e.Type, rightsString(e.Rights), e.Owner, e.Group, e.Size,
			e.ModifiedAt().UTC().Format(time.RFC3339), e.Name)
	}
	tw.Flush()
}

// rightsString renders compact rights as the nine ls -l permission columns.
func rightsString(r remotefs.Rights) string {
	var b strings.Builder
	for _, set := range []string{r.User, r.Group, r.Other} {
		for _, c := range "rwx" {
			if strings.ContainsRune(set, c) {
				b.WriteRune(c)
			} else {
				b.WriteByte('-')
			}
		}
	}
	return b.String()
}

func formatMillis(ms int64) string {
	return time.UnixMilli(ms).UTC().Format(time.RFC3339)
}

// flagged removes a leading flag from args and reports whether it was there.
func flagged(args []string, name string) (bool, []string) {
	if len(args) > 0 && args[0] == name {
		return true, args[1:]
	}
	return false, args
}
