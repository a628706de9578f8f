package formats

import (
	"fmt"
	"net/url"
	"sync"

	"github.com/samber/lo"

	"github.com/ytget/ytsig/errs"
	"github.com/ytget/ytsig/internal/logger"
	"github.com/ytget/ytsig/types"
	"github.com/ytget/ytsig/youtube/cipher"
)

const (
	defaultSignatureParam = "signature"
	throttleParam         = "n"
	rateBypassParam       = "ratebypass"
)

// Tier names the path a session uses to decipher signatures.
type Tier string

const (
	TierPrimary  Tier = "primary"
	TierFallback Tier = "fallback"
)

// Option configures a Session.
type Option func(*Session)

// WithConcurrency resolves up to n descriptors at a time. Values below 2
// keep resolution sequential.
func WithConcurrency(n int) Option {
	return func(s *Session) {
		s.concurrency = n
	}
}

// WithRateBypass appends ratebypass=yes to resolved URLs that lack it.
func WithRateBypass(on bool) Option {
	return func(s *Session) {
		s.rateBypass = on
	}
}

// WithEvaluator sets the evaluator used for extracted routines.
func WithEvaluator(ev cipher.Evaluator) Option {
	return func(s *Session) {
		if ev != nil {
			s.evaluator = ev
		}
	}
}

// WithRoutines supplies routines that were extracted elsewhere; the session
// will not extract its own.
func WithRoutines(r cipher.Routines) Option {
	return func(s *Session) {
		s.routines = r
		s.presetRoutines = true
	}
}

// WithLogger routes session logging through l instead of the global logger.
func WithLogger(l *logger.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.log = l.WithComponent(logger.ComponentFormats)
		}
	}
}

// Session resolves format descriptors against one player bundle. Routines
// and tokens are derived from the bundle at most once. Once a primary
// routine fails the session stops using it for good: signatures move to the
// token fallback and n values are left as they are.
//
// A Session is safe for concurrent use.
type Session struct {
	bundle      string
	evaluator   cipher.Evaluator
	concurrency int
	rateBypass  bool
	log         *logger.ComponentLogger

	routinesOnce   sync.Once
	routines       cipher.Routines
	presetRoutines bool

	tokensOnce sync.Once
	tokens     []cipher.Token
	tokensErr  error

	mu             sync.Mutex
	decipherBroken error
	nBroken        error
}

// NewSession returns a Session for bundle.
func NewSession(bundle string, opts ...Option) *Session {
	s := &Session{
		bundle:      bundle,
		evaluator:   cipher.MiniEvaluator{},
		concurrency: 1,
		log:         logger.WithComponent(logger.ComponentFormats),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.concurrency < 1 {
		s.concurrency = 1
	}
	return s
}

// Resolve is shorthand for NewSession(bundle, opts...).Resolve(formats).
func Resolve(bundle string, formats []types.Format, opts ...Option) []types.Format {
	return NewSession(bundle, opts...).Resolve(formats)
}

// Routines returns the routines extracted from the bundle.
func (s *Session) Routines() cipher.Routines {
	s.routinesOnce.Do(func() {
		if !s.presetRoutines {
			s.routines = cipher.ExtractRoutines(s.bundle)
		}
	})
	return s.routines
}

// Tokens returns the fallback token list decoded from the bundle.
func (s *Session) Tokens() ([]cipher.Token, error) {
	s.tokensOnce.Do(func() {
		s.tokens, s.tokensErr = cipher.DecodeTokens(s.bundle)
	})
	return s.tokens, s.tokensErr
}

// DecipherTier reports which path signatures go through now.
func (s *Session) DecipherTier() Tier {
	if _, err := s.primaryDecipher(); err != nil {
		return TierFallback
	}
	return TierPrimary
}

// job carries one descriptor's intermediate values through resolution.
type job struct {
	url        string
	sig        string
	sp         string
	nOut       string
	deciphered bool
	failed     bool
	errs       []error
}

func (j *job) fail(err error) {
	j.failed = true
	j.errs = append(j.errs, err)
}

func (j *job) note(err error) {
	j.errs = append(j.errs, err)
}

// Resolve rewrites each descriptor in place and returns formats. No
// descriptor is dropped; each ends with Status and Errors set.
func (s *Session) Resolve(formats []types.Format) []types.Format {
	jobs := make([]job, len(formats))
	for i := range formats {
		jobs[i] = prepare(&formats[i])
	}

	s.decipherAll(jobs)
	s.transformAll(jobs)

	for i := range formats {
		s.commit(&formats[i], &jobs[i])
	}

	s.log.Debug("formats resolved", map[string]any{
		"total":   len(formats),
		"partial": lo.CountBy(formats, func(f types.Format) bool { return f.Status == types.StatusPartial }),
		"failed":  lo.CountBy(formats, func(f types.Format) bool { return f.Status == types.StatusFailed }),
	})
	return formats
}

// prepare finds the working URL, signature and signature parameter.
func prepare(f *types.Format) job {
	j := job{url: f.URL, sig: f.S, sp: f.SP}
	if j.url == "" {
		encoded := f.SignatureCipher
		if encoded == "" {
			encoded = f.Cipher
		}
		if encoded == "" {
			j.fail(fmt.Errorf("%w: format %d has neither url nor cipher", errs.ErrCipherFailed, f.Itag))
			return j
		}
		q, err := url.ParseQuery(encoded)
		if err != nil {
			j.fail(fmt.Errorf("%w: parse cipher of format %d: %v", errs.ErrCipherFailed, f.Itag, err))
			return j
		}
		j.url = q.Get("url")
		if v := q.Get("s"); v != "" {
			j.sig = v
		}
		if v := q.Get("sp"); v != "" {
			j.sp = v
		}
		if j.url == "" {
			j.fail(fmt.Errorf("%w: cipher of format %d carries no url", errs.ErrCipherFailed, f.Itag))
			return j
		}
	}
	if j.sp == "" {
		j.sp = defaultSignatureParam
	}
	return j
}

func (s *Session) primaryDecipher() (*cipher.Routine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.decipherBroken != nil {
		return nil, s.decipherBroken
	}
	r, ok := s.Routines().Decipher.Get()
	if !ok {
		s.decipherBroken = s.Routines().DecipherErr
		if s.decipherBroken == nil {
			s.decipherBroken = cipher.NewError(cipher.ErrCodeExtractionFailed, "decipher routine unavailable")
		}
		return nil, s.decipherBroken
	}
	return r, nil
}

func (s *Session) primaryN() (*cipher.Routine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.nBroken != nil {
		return nil, s.nBroken
	}
	r, ok := s.Routines().NTransform.Get()
	if !ok {
		s.nBroken = s.Routines().NTransformErr
		if s.nBroken == nil {
			s.nBroken = cipher.NewError(cipher.ErrCodeExtractionFailed, "n-transform routine unavailable")
		}
		return nil, s.nBroken
	}
	return r, nil
}

func (s *Session) breakDecipher(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.decipherBroken == nil {
		s.decipherBroken = err
		s.log.Debug("decipher switched to token fallback", map[string]any{"error": err})
	}
}

func (s *Session) breakN(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.nBroken == nil {
		s.nBroken = err
		s.log.Debug("n-transform disabled", map[string]any{"error": err})
	}
}

// evaluate runs r and turns a panic into an evaluation error.
func (s *Session) evaluate(r *cipher.Routine, arg string) (out string, err error) {
	defer func() {
		if p := recover(); p != nil {
			out, err = "", cipher.NewError(cipher.ErrCodeEvaluationFailed, fmt.Sprintf("evaluator panic: %v", p), r.Name)
		}
	}()
	return s.evaluator.Evaluate(r, arg)
}

// runPrimary evaluates r for every index in idx. It returns the outputs, or
// the first failure in index order.
func (s *Session) runPrimary(r *cipher.Routine, idx []int, input func(i int) string) (map[int]string, error) {
	outs := make([]string, len(idx))
	failures := make([]error, len(idx))
	s.parallel(len(idx), func(k int) {
		outs[k], failures[k] = s.evaluate(r, input(idx[k]))
	})
	if err, ok := lo.Find(failures, func(err error) bool { return err != nil }); ok {
		return nil, err
	}
	res := make(map[int]string, len(idx))
	for k, i := range idx {
		res[i] = outs[k]
	}
	return res, nil
}

func (s *Session) decipherAll(jobs []job) {
	idx := lo.Filter(lo.Range(len(jobs)), func(i, _ int) bool {
		return !jobs[i].failed && jobs[i].sig != ""
	})
	if len(idx) == 0 {
		return
	}

	r, primaryErr := s.primaryDecipher()
	if primaryErr == nil {
		res, err := s.runPrimary(r, idx, func(i int) string { return jobs[i].sig })
		if err == nil {
			for _, i := range idx {
				jobs[i].sig = res[i]
				jobs[i].deciphered = true
			}
			return
		}
		s.breakDecipher(err)
		primaryErr = err
	}

	tokens, err := s.Tokens()
	if err != nil {
		for _, i := range idx {
			jobs[i].note(primaryErr)
			jobs[i].note(err)
		}
		return
	}
	s.parallel(len(idx), func(k int) {
		j := &jobs[idx[k]]
		out, err := cipher.ApplyTokens(tokens, j.sig)
		if err != nil {
			j.fail(err)
			return
		}
		j.sig = out
		j.deciphered = true
	})
}

func (s *Session) transformAll(jobs []job) {
	idx := lo.Filter(lo.Range(len(jobs)), func(i, _ int) bool {
		if jobs[i].failed {
			return false
		}
		n, ok := queryParam(jobs[i].url, throttleParam)
		return ok && n != ""
	})
	if len(idx) == 0 {
		return
	}

	input := func(i int) string {
		n, _ := queryParam(jobs[i].url, throttleParam)
		return n
	}

	r, err := s.primaryN()
	if err == nil {
		var res map[int]string
		if res, err = s.runPrimary(r, idx, input); err == nil {
			for _, i := range idx {
				jobs[i].nOut = res[i]
			}
			return
		}
		s.breakN(err)
	}

	skipped := cipher.WrapError(cipher.ErrCodeTokenGrammarMismatch, "no fallback for n transform", err)
	for _, i := range idx {
		jobs[i].note(skipped)
	}
}

// commit writes the job back onto the descriptor. The cipher fields are
// cleared in all cases; a failed descriptor keeps its URL as it came in.
func (s *Session) commit(f *types.Format, j *job) {
	f.Errors = j.errs
	f.SignatureCipher = ""
	f.Cipher = ""
	f.S = ""
	f.SP = ""
	if j.failed {
		f.Status = types.StatusFailed
		return
	}

	u := j.url
	if j.deciphered {
		u = setQueryParam(u, j.sp, j.sig)
	}
	if j.nOut != "" {
		u = setQueryParam(u, throttleParam, j.nOut)
	}
	if s.rateBypass {
		if _, ok := queryParam(u, rateBypassParam); !ok {
			u = setQueryParam(u, rateBypassParam, "yes")
		}
	}

	f.URL = u
	if len(j.errs) > 0 {
		f.Status = types.StatusPartial
	} else {
		f.Status = types.StatusResolved
	}
}

// parallel calls fn for 0..n-1 with at most s.concurrency calls in flight.
func (s *Session) parallel(n int, fn func(k int)) {
	if s.concurrency <= 1 || n < 2 {
		for k := 0; k < n; k++ {
			fn(k)
		}
		return
	}
	sem := make(chan struct{}, s.concurrency)
	var wg sync.WaitGroup
	for k := 0; k < n; k++ {
		wg.Add(1)
		sem <- struct{}{}
		go func(k int) {
			defer wg.Done()
			defer func() { <-sem }()
			fn(k)
		}(k)
	}
	wg.Wait()
}
