package main

import (
	"context"
	"fmt"
)

// setCurrent marks the session or the term named name as current.
func (cli *commandLine) setCurrent(session, term string) error {
	ctx := context.Background()
	if session != "" {
		sess, err := cli.acaSvc.GetSessionByName(ctx, session)
		if err != nil {
			return err
		}
		if _, err = cli.acaSvc.SetCurrentSession(ctx, sess.ID); err != nil {
			return err
		}
		fmt.Printf("current session: %s\n", sess.Name)
		return nil
	}

	t, err := cli.acaSvc.GetTermByName(ctx, term)
	if err != nil {
		return err
	}
	if _, err = cli.acaSvc.SetCurrentTerm(ctx, t.ID); err != nil {
		return err
	}
	fmt.Printf("current term: %s\n", t.Name)
	return nil
}

func (cli *commandLine) notifyOverdue() error {
	n, err := cli.libSvc.NotifyOverdue(context.Background())
	if err != nil {
		return err
	}
	fmt.Printf("%d reminder(s) sent\n", n)
	return nil
}
