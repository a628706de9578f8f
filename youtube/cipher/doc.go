/*
Package cipher recovers the signature and n-parameter transformations from a
YouTube player bundle.

The package works on bundle text only. It never fetches anything; the
youtube/player package does that.

# Architecture

Two tiers, tried in order:

1. Primary tier
  - ExtractRoutines finds the decipher and n-transform functions through
    fixed anchor substrings and cuts them out with ScanBalanced
  - The decipher routine carries the helper object its body calls into
  - An Evaluator runs a routine over one argument

2. Fallback tier (decipher only)
  - DecodeTokens matches a helper object made of the four known operation
    shapes (reverse, slice, splice, swap) and the driver that calls it
  - The driver's call sites become an ordered []Token
  - ApplyTokens replays the tokens without executing bundle code

Choosing between the tiers for a batch of formats is the job of
youtube/formats.Session.

SignatureTimestamp reads the timestamp a bundle declares, which player API
requests quote to get signatures matching that bundle.

# Usage

	routines := cipher.ExtractRoutines(bundle)
	if r, ok := routines.Decipher.Get(); ok {
		sig, err := cipher.MiniEvaluator{}.Evaluate(r, raw)
		...
	}

	tokens, err := cipher.DecodeTokens(bundle)
	if err != nil {
		if cipher.IsGrammarMismatch(err) {
			// the bundle shape is not recognised
		}
		return err
	}
	sig, err := cipher.ApplyTokens(tokens, raw)

# Engines

  - builtin: MiniEvaluator, backed by internal/jsmini (default)
  - otto: OttoEvaluator, github.com/robertkrimen/otto
  - goja: GojaEvaluator, github.com/dop251/goja

Every evaluation gets a fresh VM holding only the routine source and the
argument. otto and goja runs are interrupted after a timeout; the builtin
interpreter has a step budget instead.

# Error Codes

  - UNSUPPORTED_START: scan did not start on [ or {
  - UNBALANCED_BRACKETS: text ended before the span closed
  - ANCHOR_NOT_FOUND: a fixed anchor or definition is missing
  - EXTRACTION_FAILED: a routine could not be extracted (wraps one of the above)
  - EVALUATION_FAILED: a routine did not produce a string
  - TOKEN_GRAMMAR_MISMATCH: the fallback grammars did not match
  - INDEX_OUT_OF_RANGE: a token addressed a position outside the signature

Each code matches the sentinel of the same name in package errs through
errors.Is.

# Limitations

ScanBalanced decides whether '/' opens a regex literal by looking at the
preceding characters only. Division right after one of "[{:;," is misread.
The anchors and grammars follow the player layout as it is today and are
expected to break when the layout changes; callers fall back or report a
partial result rather than guessing.
*/
package cipher
