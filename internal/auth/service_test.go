package auth

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/ir-comercio/ir-comercio-sistema/internal/model"
	"github.com/ir-comercio/ir-comercio-sistema/internal/policy"
)

const (
	officeIP   = "10.0.0.1"
	testDevice = "device-abc"
	testPass   = "correct horse"
)

var saoPaulo = mustLoadLocation("America/Sao_Paulo")

func mustLoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(err)
	}
	return loc
}

// tuesdayAt returns 2024-03-05 (a Tuesday) at hour:min in the business timezone.
func tuesdayAt(hour, min int) time.Time {
	return time.Date(2024, 3, 5, hour, min, 0, 0, saoPaulo)
}

type fixture struct {
	store    *memStore
	clock    *policy.FixedClock
	svc      *Service
	verifier *Verifier
	hasher   *PasswordHasher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := newMemStore()
	clock := &policy.FixedClock{T: tuesdayAt(10, 0)}
	hasher := NewPasswordHasher(bcrypt.MinCost)
	pol := Policy{
		AllowList:  policy.NewAllowList([]string{officeIP}),
		Hours:      policy.NewBusinessHours(saoPaulo, policy.DefaultOpenHour, policy.DefaultCloseHour),
		Clock:      clock,
		SessionTTL: 8 * time.Hour,
	}
	f := &fixture{
		store:    store,
		clock:    clock,
		hasher:   hasher,
		svc:      NewService(store, store.deviceRepo(), store, NewAuditor(store.attemptRepo(), nil), hasher, pol, nil),
		verifier: NewVerifier(store, pol, nil),
	}
	t.Cleanup(func() {
		f.svc.Wait()
		f.verifier.Wait()
	})
	return f
}

func (f *fixture) addUser(t *testing.T, username string, admin bool) model.User {
	t.Helper()
	hash, err := f.hasher.Hash(testPass)
	require.NoError(t, err)
	return f.store.addUser(model.User{
		Username:     username,
		PasswordHash: hash,
		Name:         strings.ToUpper(username[:1]) + username[1:],
		IsAdmin:      admin,
		IsActive:     true,
		Sector:       "compras",
	})
}

func loginReq(username string) LoginRequest {
	return LoginRequest{
		Username:    username,
		Password:    testPass,
		DeviceToken: testDevice,
		UserAgent:   "Mozilla/5.0 (X11; Linux x86_64)",
		IP:          officeIP,
	}
}

func requireRejection(t *testing.T, err error, reason Reason) *Rejection {
	t.Helper()
	require.Error(t, err)
	rej, ok := AsRejection(err)
	require.True(t, ok, "expected rejection, got %v", err)
	assert.Equal(t, reason, rej.Reason)
	return rej
}

func TestLogin_Success(t *testing.T) {
	f := newFixture(t)
	user := f.addUser(t, "ana", false)

	res, err := f.svc.Login(context.Background(), loginReq("ana"))
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(res.SessionToken, SessionTokenPrefix))
	assert.Equal(t, user.ID, res.UserID)
	assert.Equal(t, "Ana", res.Name)
	assert.Equal(t, "compras", res.Sector)
	assert.False(t, res.Renewed)
	assert.True(t, tuesdayAt(18, 0).Equal(res.ExpiresAt))

	sess, ok := f.store.session(HashSessionToken(res.SessionToken))
	require.True(t, ok)
	assert.True(t, sess.IsActive)
	assert.Equal(t, officeIP, sess.IPAddress)

	f.svc.Wait()
	attempts := f.store.recorded()
	require.Len(t, attempts, 1)
	assert.True(t, attempts[0].Success)
	assert.Nil(t, attempts[0].FailureReason)
}

func TestLogin_UsernameIsCaseInsensitive(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "ana", false)

	_, err := f.svc.Login(context.Background(), loginReq("ANA"))
	require.NoError(t, err)
}

func TestLogin_MissingFields(t *testing.T) {
	f := newFixture(t)
	for _, req := range []LoginRequest{
		{Password: testPass, DeviceToken: testDevice, IP: officeIP},
		{Username: "ana", DeviceToken: testDevice, IP: officeIP},
		{Username: "ana", Password: testPass, DeviceToken: "  ", IP: officeIP},
	} {
		_, err := f.svc.Login(context.Background(), req)
		rej := requireRejection(t, err, ReasonMissingFields)
		assert.Equal(t, http.StatusBadRequest, rej.Status())
	}
}

func TestLogin_IPNotAuthorized_AuditedOnce(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "ana", false)

	req := loginReq("ana")
	req.IP = "203.0.113.9"
	_, err := f.svc.Login(context.Background(), req)
	rej := requireRejection(t, err, ReasonIPNotAuthorized)
	assert.Equal(t, http.StatusForbidden, rej.Status())
	assert.Equal(t, msgIPNotAuthorized, rej.Message)

	f.svc.Wait()
	attempts := f.store.recorded()
	require.Len(t, attempts, 1)
	assert.False(t, attempts[0].Success)
	require.NotNil(t, attempts[0].FailureReason)
	assert.Equal(t, string(ReasonIPNotAuthorized), *attempts[0].FailureReason)
	assert.Equal(t, "203.0.113.9", attempts[0].IPAddress)

	n, err := f.store.CountActive(context.Background(), f.mustUser(t, "ana").ID, testDevice)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func (f *fixture) mustUser(t *testing.T, username string) model.User {
	t.Helper()
	u, err := f.store.GetByUsername(context.Background(), username)
	require.NoError(t, err)
	return u
}

func TestLogin_IPv4MappedAddressIsNormalized(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "ana", false)

	req := loginReq("ana")
	req.IP = "::ffff:" + officeIP
	res, err := f.svc.Login(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, officeIP, res.IP)
}

func TestLogin_CredentialFailuresShareOneMessage(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "ana", false)
	inactive := f.addUser(t, "bruno", false)
	f.store.setUserActive(inactive.ID, false)

	wrong := loginReq("ana")
	wrong.Password = "nope"

	cases := []struct {
		name   string
		req    LoginRequest
		reason Reason
	}{
		{"unknown user", loginReq("ghost"), ReasonUserNotFound},
		{"inactive user", loginReq("bruno"), ReasonUserInactive},
		{"wrong password", wrong, ReasonWrongPassword},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Login(context.Background(), tc.req)
			rej := requireRejection(t, err, tc.reason)
			assert.Equal(t, http.StatusUnauthorized, rej.Status())
			assert.Equal(t, msgInvalidCredentials, rej.Summary)
			assert.Empty(t, rej.Message)
		})
	}

	f.svc.Wait()
	assert.Len(t, f.store.recorded(), len(cases))
}

func TestLogin_CredentialFailuresAllRunOneHashComparison(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "ana", false)
	inactive := f.addUser(t, "bruno", false)
	f.store.setUserActive(inactive.ID, false)

	var compared []string
	f.svc.matchPassword = func(hash, password string) bool {
		compared = append(compared, hash)
		return f.hasher.Matches(hash, password)
	}

	wrong := loginReq("ana")
	wrong.Password = "nope"
	for _, req := range []LoginRequest{loginReq("ghost"), loginReq("bruno"), wrong} {
		_, err := f.svc.Login(context.Background(), req)
		require.Error(t, err)
	}

	require.Len(t, compared, 3, "unknown, inactive and wrong-password logins each pay for one bcrypt compare")
	assert.Equal(t, f.hasher.DummyHash(), compared[0])
	assert.Equal(t, f.hasher.DummyHash(), compared[1])
	assert.NotEqual(t, f.hasher.DummyHash(), compared[2])
}

func TestLogin_AuditKeepsUsernameAsTyped(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "ana", false)

	req := loginReq(" Ana ")
	_, err := f.svc.Login(context.Background(), req)
	require.NoError(t, err)

	f.svc.Wait()
	attempts := f.store.recorded()
	require.Len(t, attempts, 1)
	assert.Equal(t, " Ana ", attempts[0].Username)
	assert.True(t, attempts[0].Success)
}

func TestLogin_BusinessHours(t *testing.T) {
	cases := []struct {
		name  string
		at    time.Time
		admin bool
		ok    bool
	}{
		{"weekday opening hour", tuesdayAt(8, 0), false, true},
		{"weekday last minute", tuesdayAt(17, 59), false, true},
		{"weekday closing hour", tuesdayAt(18, 0), false, false},
		{"weekday early morning", tuesdayAt(7, 59), false, false},
		{"saturday", time.Date(2024, 3, 9, 10, 0, 0, 0, saoPaulo), false, false},
		{"sunday", time.Date(2024, 3, 10, 10, 0, 0, 0, saoPaulo), false, false},
		{"admin saturday", time.Date(2024, 3, 9, 23, 0, 0, 0, saoPaulo), true, true},
		{"admin at night", tuesdayAt(3, 0), true, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			f.addUser(t, "ana", tc.admin)
			f.clock.Set(tc.at)

			_, err := f.svc.Login(context.Background(), loginReq("ana"))
			if tc.ok {
				require.NoError(t, err)
				return
			}
			rej := requireRejection(t, err, ReasonOutsideBusinessHours)
			assert.Equal(t, http.StatusForbidden, rej.Status())
			assert.Equal(t, msgOutsideHours, rej.Message)
		})
	}
}

func TestLogin_BusinessHoursUseBusinessTimezone(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "ana", false)

	// 12:30 UTC is 09:30 in São Paulo.
	f.clock.Set(time.Date(2024, 3, 5, 12, 30, 0, 0, time.UTC))
	_, err := f.svc.Login(context.Background(), loginReq("ana"))
	require.NoError(t, err)

	// 22:00 UTC is 19:00 in São Paulo.
	f.clock.Set(time.Date(2024, 3, 5, 22, 0, 0, 0, time.UTC))
	_, err = f.svc.Login(context.Background(), loginReq("ana"))
	requireRejection(t, err, ReasonOutsideBusinessHours)
}

func TestLogin_RenewalKeepsOneActiveSession(t *testing.T) {
	f := newFixture(t)
	user := f.addUser(t, "ana", false)
	ctx := context.Background()

	first, err := f.svc.Login(ctx, loginReq("ana"))
	require.NoError(t, err)

	f.clock.Set(tuesdayAt(11, 0))
	second, err := f.svc.Login(ctx, loginReq("ana"))
	require.NoError(t, err)
	assert.True(t, second.Renewed)
	assert.NotEqual(t, first.SessionToken, second.SessionToken)
	assert.True(t, tuesdayAt(19, 0).Equal(second.ExpiresAt))

	n, err := f.store.CountActive(ctx, user.ID, testDevice)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = f.verifier.Verify(ctx, first.SessionToken)
	requireRejection(t, err, ReasonSessionNotFound)

	claims, err := f.verifier.Verify(ctx, second.SessionToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
}

func TestLogin_SeparateDevicesGetSeparateSessions(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "ana", false)
	ctx := context.Background()

	a, err := f.svc.Login(ctx, loginReq("ana"))
	require.NoError(t, err)

	req := loginReq("ana")
	req.DeviceToken = "device-xyz"
	b, err := f.svc.Login(ctx, req)
	require.NoError(t, err)
	assert.False(t, b.Renewed)

	for _, tok := range []string{a.SessionToken, b.SessionToken} {
		_, err := f.verifier.Verify(ctx, tok)
		require.NoError(t, err)
	}
}

func TestLogin_ConcurrentLoginsSameDevice(t *testing.T) {
	f := newFixture(t)
	user := f.addUser(t, "ana", false)
	ctx := context.Background()

	const n = 16
	tokens := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := f.svc.Login(ctx, loginReq("ana"))
			if assert.NoError(t, err) {
				tokens[i] = res.SessionToken
			}
		}(i)
	}
	wg.Wait()

	count, err := f.store.CountActive(ctx, user.ID, testDevice)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	valid := 0
	for _, tok := range tokens {
		if _, err := f.verifier.Verify(ctx, tok); err == nil {
			valid++
		}
	}
	assert.Equal(t, 1, valid)
}

func TestLogin_StorageFailure(t *testing.T) {
	f := newFixture(t)
	f.store.userErr = errStoreDown

	_, err := f.svc.Login(context.Background(), loginReq("ana"))
	require.Error(t, err)
	var se *StorageError
	require.ErrorAs(t, err, &se)
	assert.ErrorIs(t, err, errStoreDown)
	_, isRejection := AsRejection(err)
	assert.False(t, isRejection)
}

func TestLogin_AuditFailureDoesNotFailLogin(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "ana", false)
	f.store.attemptErr = errStoreDown

	_, err := f.svc.Login(context.Background(), loginReq("ana"))
	require.NoError(t, err)
	f.svc.Wait()
	assert.Empty(t, f.store.recorded())
}

func TestLogin_DeviceRegistration(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "ana", false)

	req := loginReq("ana")
	req.UserAgent = strings.Repeat("á", 200)
	_, err := f.svc.Login(context.Background(), req)
	require.NoError(t, err)

	f.store.mu.Lock()
	dev := f.store.devices[testDevice]
	f.store.mu.Unlock()
	assert.Equal(t, 95, len([]rune(dev.UserAgent)))
	assert.Equal(t, deviceFingerprint(testDevice, req.UserAgent), dev.Fingerprint)
	assert.True(t, dev.IsActive)

	req.UserAgent = ""
	_, err = f.svc.Login(context.Background(), req)
	require.NoError(t, err)
	f.store.mu.Lock()
	dev = f.store.devices[testDevice]
	f.store.mu.Unlock()
	assert.Equal(t, unknownUserAgent, dev.UserAgent)
}

func TestLogout(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "ana", false)
	ctx := context.Background()

	res, err := f.svc.Login(ctx, loginReq("ana"))
	require.NoError(t, err)

	require.NoError(t, f.svc.Logout(ctx, res.SessionToken))
	sess, _ := f.store.session(HashSessionToken(res.SessionToken))
	require.NotNil(t, sess.LogoutAt)
	firstLogout := *sess.LogoutAt

	f.clock.Set(tuesdayAt(12, 0))
	require.NoError(t, f.svc.Logout(ctx, res.SessionToken), "logout is idempotent")
	sess, _ = f.store.session(HashSessionToken(res.SessionToken))
	assert.Equal(t, firstLogout, *sess.LogoutAt)

	require.NoError(t, f.svc.Logout(ctx, "sess_unknown"))

	_, err = f.verifier.Verify(ctx, res.SessionToken)
	requireRejection(t, err, ReasonSessionNotFound)

	err = f.svc.Logout(ctx, "  ")
	rej := requireRejection(t, err, ReasonTokenMissing)
	assert.Equal(t, http.StatusBadRequest, rej.Status())
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ab", truncate("abc", 2))
	assert.Equal(t, "ção", truncate("çãoxyz", 3))
}
