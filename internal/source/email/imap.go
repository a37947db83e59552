package email

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"go.uber.org/zap"

	"jobpipe-engine/internal/config"
)

// Message is one fetched mail: envelope fields plus the raw RFC822 bytes.
type Message struct {
	UID     imap.UID
	From    string
	Subject string
	Date    time.Time
	Raw     []byte
}

// Mailbox is the IMAP surface the source needs.
type Mailbox interface {
	Unseen(ctx context.Context, max int, since time.Time) ([]Message, error)
	MarkSeen(ctx context.Context, uids []imap.UID) error
	Close() error
}

// Dialer opens a selected mailbox.
type Dialer func(ctx context.Context, ec config.Email, password string) (Mailbox, error)

type imapMailbox struct {
	c   *imapclient.Client
	log *zap.SugaredLogger
}

func address(ec config.Email) string {
	host := strings.TrimSpace(ec.IMAPHost)
	if strings.Contains(host, ":") {
		return host
	}
	port := ec.IMAPPort
	if port == 0 {
		port = 993
	}
	return fmt.Sprintf("%s:%d", host, port)
}

// DialIMAP connects over TLS, logs in and selects the configured mailbox
// (INBOX by default).
func DialIMAP(log *zap.SugaredLogger) Dialer {
	return func(ctx context.Context, ec config.Email, password string) (Mailbox, error) {
		if ec.IMAPHost == "" || ec.Username == "" || password == "" {
			return nil, errors.New("imap host, username and password are required")
		}
		host, _, _ := strings.Cut(strings.TrimSpace(ec.IMAPHost), ":")
		c, err := imapclient.DialTLS(address(ec), &imapclient.Options{
			TLSConfig: &tls.Config{MinVersion: tls.VersionTLS12, ServerName: host},
		})
		if err != nil {
			return nil, errors.Wrap(err, "imap dial tls")
		}

		stop := context.AfterFunc(ctx, func() { _ = c.Close() })
		defer stop()

		if err := c.Login(ec.Username, password).Wait(); err != nil {
			_ = c.Close()
			return nil, errors.Wrap(err, "imap login")
		}
		mbox := ec.Mailbox
		if mbox == "" {
			mbox = "INBOX"
		}
		if _, err := c.Select(mbox, &imap.SelectOptions{ReadOnly: false}).Wait(); err != nil {
			_ = c.Close()
			return nil, errors.Wrapf(err, "imap select %q", mbox)
		}
		return &imapMailbox{c: c, log: log}, nil
	}
}

// Unseen returns up to max unseen messages received after since, newest
// first. Bodies are fetched with BODY.PEEK[] so nothing is flagged yet.
func (m *imapMailbox) Unseen(ctx context.Context, max int, since time.Time) ([]Message, error) {
	if max <= 0 {
		max = 50
	}
	stop := context.AfterFunc(ctx, func() { _ = m.c.Close() })
	defer stop()

	sd, err := m.c.UIDSearch(&imap.SearchCriteria{
		NotFlag: []imap.Flag{imap.FlagSeen},
		Since:   since,
	}, nil).Wait()
	if err != nil {
		return nil, errors.Wrap(err, "imap uid search unseen")
	}
	uids := sd.AllUIDs()
	for i, j := 0, len(uids)-1; i < j; i, j = i+1, j-1 {
		uids[i], uids[j] = uids[j], uids[i]
	}
	if len(uids) > max {
		uids = uids[:max]
	}
	if len(uids) == 0 {
		return nil, nil
	}

	body := &imap.FetchItemBodySection{Specifier: imap.PartSpecifierNone, Peek: true}
	cmd := m.c.Fetch(imap.UIDSetNum(uids...), &imap.FetchOptions{
		UID:         true,
		Envelope:    true,
		BodySection: []*imap.FetchItemBodySection{body},
	})
	defer func() { _ = cmd.Close() }()

	out := make([]Message, 0, len(uids))
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		md := cmd.Next()
		if md == nil {
			break
		}
		buf, err := md.Collect()
		if err != nil {
			return nil, errors.Wrap(err, "imap fetch collect")
		}
		msg := Message{UID: buf.UID}
		if env := buf.Envelope; env != nil {
			msg.Subject = env.Subject
			msg.Date = env.Date
			if len(env.From) > 0 {
				msg.From = env.From[0].Addr()
			}
		}
		if b := buf.FindBodySection(body); b != nil {
			msg.Raw = append([]byte(nil), b...)
		}
		out = append(out, msg)
	}
	if err := cmd.Close(); err != nil {
		return nil, errors.Wrap(err, "imap fetch close")
	}
	return out, nil
}

func (m *imapMailbox) MarkSeen(ctx context.Context, uids []imap.UID) error {
	if len(uids) == 0 {
		return nil
	}
	stop := context.AfterFunc(ctx, func() { _ = m.c.Close() })
	defer stop()

	cmd := m.c.Store(imap.UIDSetNum(uids...), &imap.StoreFlags{
		Op:     imap.StoreFlagsAdd,
		Silent: true,
		Flags:  []imap.Flag{imap.FlagSeen},
	}, nil)
	return errors.Wrap(cmd.Close(), "imap store seen")
}

func (m *imapMailbox) Close() error {
	if err := m.c.Logout().Wait(); err != nil {
		m.log.Debugw("imap logout", "err", err)
	}
	return m.c.Close()
}

// headerFallback fills envelope fields from the raw headers when the
// server sent no envelope.
func headerFallback(msg *Message) {
	if len(msg.Raw) == 0 || (msg.Subject != "" && msg.From != "" && !msg.Date.IsZero()) {
		return
	}
	m, err := mail.ReadMessage(strings.NewReader(string(msg.Raw)))
	if err != nil {
		return
	}
	if msg.Subject == "" {
		msg.Subject = decodeHeader(m.Header.Get("Subject"))
	}
	if msg.From == "" {
		if a, err := mail.ParseAddress(m.Header.Get("From")); err == nil {
			msg.From = a.Address
		} else {
			msg.From = m.Header.Get("From")
		}
	}
	if msg.Date.IsZero() {
		if t, err := m.Header.Date(); err == nil {
			msg.Date = t
		}
	}
}
