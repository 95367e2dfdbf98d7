package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"lesson-scheduler/internal/schedule"
)

const googleTokenHeader = "X-Google-Token"

var errGoogleNotConfigured = errors.New("google calendar not configured")

const (
	oauthStateAudience = "oauth-state"
	oauthStateTTL      = 10 * time.Minute
)

// GoogleCalendarConfig holds OAuth2 configuration
type GoogleCalendarConfig struct {
	Config *oauth2.Config

	// stateKey signs the OAuth state round-tripped through Google.
	stateKey []byte
}

// NewGoogleCalendarConfig returns nil unless all three values are set.
func NewGoogleCalendarConfig(clientID, clientSecret, redirectURL string) *GoogleCalendarConfig {
	if clientID == "" || clientSecret == "" || redirectURL == "" {
		return nil
	}

	config := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes: []string{
			calendar.CalendarReadonlyScope,
		},
		Endpoint: google.Endpoint,
	}

	return &GoogleCalendarConfig{Config: config, stateKey: []byte(clientSecret)}
}

// newState returns a signed, short-lived state naming the tutor who started
// the authorization.
func (g *GoogleCalendarConfig) newState(tutorID string, now time.Time) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   tutorID,
		ID:        uuid.NewString(),
		Audience:  jwt.ClaimStrings{oauthStateAudience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(oauthStateTTL)),
	}).SignedString(g.stateKey)
}

// verifyState returns the tutor a state was issued for.
func (g *GoogleCalendarConfig) verifyState(state string) (string, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(state, &claims, func(*jwt.Token) (interface{}, error) {
		return g.stateKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(oauthStateAudience),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

func (g *GoogleCalendarConfig) calendarService(ctx context.Context, token *oauth2.Token) (*calendar.Service, error) {
	return calendar.NewService(ctx, option.WithHTTPClient(g.Config.Client(ctx, token)))
}

// GET /calendar/auth
func (a *App) GoogleAuthHandler(c *gin.Context) {
	if a.Google == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": errGoogleNotConfigured.Error()})
		return
	}

	state, err := a.Google.newState(c.GetString(tutorIDKey), time.Now())
	if err != nil {
		a.writeError(c, err)
		return
	}

	url := a.Google.Config.AuthCodeURL(state, oauth2.AccessTypeOffline)
	c.JSON(http.StatusOK, gin.H{
		"auth_url": url,
		"state":    state,
	})
}

// GET /oauth2callback
// The returned token is what clients send back in the X-Google-Token header.
func (a *App) GoogleOAuth2CallbackHandler(c *gin.Context) {
	if a.Google == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": errGoogleNotConfigured.Error()})
		return
	}

	code := c.Query("code")
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "authorization code required"})
		return
	}

	tutorID, err := a.Google.verifyState(c.Query("state"))
	if err != nil {
		a.logger().Warn("oauth state rejected", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid or expired state"})
		return
	}

	token, err := a.Google.Config.Exchange(c.Request.Context(), code)
	if err != nil {
		a.logger().Warn("google token exchange failed", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to exchange code for token"})
		return
	}

	tokenJSON, _ := json.Marshal(token)
	c.JSON(http.StatusOK, gin.H{
		"message":  "Authorization successful",
		"tutor_id": tutorID,
		"token":    string(tokenJSON),
	})
}

// googleBusyFromRequest returns a Google free/busy provider when the request
// carries a Google token, nil otherwise.
func (a *App) googleBusyFromRequest(c *gin.Context) (schedule.BusySlotProvider, error) {
	tokenStr := c.GetHeader(googleTokenHeader)
	if tokenStr == "" {
		return nil, nil
	}
	if a.Google == nil {
		return nil, errGoogleNotConfigured
	}

	var token oauth2.Token
	if err := json.Unmarshal([]byte(tokenStr), &token); err != nil {
		return nil, fmt.Errorf("invalid %s header: %w", googleTokenHeader, err)
	}

	newService := a.googleService
	if newService == nil {
		newService = a.Google.calendarService
	}
	srv, err := newService(c.Request.Context(), &token)
	if err != nil {
		return nil, fmt.Errorf("create calendar service: %w", err)
	}
	return &GoogleBusyProvider{Service: srv, Location: a.location()}, nil
}

// GoogleBusyProvider reports the busy periods of a Google calendar via the
// FreeBusy API. Google events carry no lesson ID.
type GoogleBusyProvider struct {
	Service    *calendar.Service
	CalendarID string
	Location   *time.Location
}

func (g *GoogleBusyProvider) BusySlots(ctx context.Context, date time.Time) ([]schedule.BusySlot, error) {
	calID := g.CalendarID
	if calID == "" {
		calID = "primary"
	}
	loc := g.Location
	if loc == nil {
		loc = time.UTC
	}
	day := schedule.DayBounds(date, loc)

	resp, err := g.Service.Freebusy.Query(&calendar.FreeBusyRequest{
		TimeMin:  day.Start.Format(time.RFC3339),
		TimeMax:  day.End.Format(time.RFC3339),
		TimeZone: loc.String(),
		Items:    []*calendar.FreeBusyRequestItem{{Id: calID}},
	}).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("google freebusy: %w", err)
	}

	cal, ok := resp.Calendars[calID]
	if !ok {
		return nil, nil
	}
	if len(cal.Errors) > 0 {
		return nil, fmt.Errorf("google freebusy %s: %s", calID, cal.Errors[0].Reason)
	}

	var out []schedule.BusySlot
	for _, p := range cal.Busy {
		start, err := time.Parse(time.RFC3339, p.Start)
		if err != nil {
			return nil, fmt.Errorf("google freebusy start %q: %w", p.Start, err)
		}
		end, err := time.Parse(time.RFC3339, p.End)
		if err != nil {
			return nil, fmt.Errorf("google freebusy end %q: %w", p.End, err)
		}
		out = append(out, schedule.BusySlot{Start: start, End: end})
	}
	return out, nil
}
