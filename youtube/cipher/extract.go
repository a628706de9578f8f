package cipher

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/samber/mo"

	"github.com/ytget/ytsig/internal/logger"
)

// Anchors that directly precede the routine names in the player bundle.
const (
	decipherAnchor    = `a.set("alr","yes");c&&(c=`
	decipherNameEnd   = `(decodeURIC`
	nTransformAnchor  = `&&(b=a.get("n"))&&(b=`
	nTransformNameEnd = `(b)`
)

var (
	identRe       = regexp.MustCompile(`^[a-zA-Z_$][\w$]*$`)
	indexedNameRe = regexp.MustCompile(`^([a-zA-Z_$][\w$]*)\[(\d+)\]$`)
	helperCallRe  = regexp.MustCompile(`^([a-zA-Z_$][\w$]*)[.\[]`)
)

const paramListStart = `=function(`

// Routine is a function lifted out of the player bundle together with the
// helper object it depends on.
type Routine struct {
	Name   string
	Param  string
	Helper string // "var X={...}", empty when the routine has no helper
	Body   string // "{...}" including the braces
}

// Source renders the routine as a standalone program that defines the
// helper and the function. Callers append the invocation.
func (r *Routine) Source() string {
	var b strings.Builder
	if r.Helper != "" {
		b.WriteString(r.Helper)
		b.WriteString(";\n")
	}
	fmt.Fprintf(&b, "var %s=function(%s)%s;\n", r.Name, r.Param, r.Body)
	return b.String()
}

// Routines is the result of ExtractRoutines. Each routine is independent;
// the Err fields say why one is missing.
type Routines struct {
	Decipher      mo.Option[*Routine]
	NTransform    mo.Option[*Routine]
	DecipherErr   error
	NTransformErr error
}

// Empty reports whether neither routine could be extracted.
func (r Routines) Empty() bool {
	return r.Decipher.IsAbsent() && r.NTransform.IsAbsent()
}

// ExtractRoutines locates the decipher and n-transform routines in bundle.
func ExtractRoutines(bundle string) Routines {
	log := logger.WithComponent(logger.ComponentCipher)
	var out Routines

	if r, err := extractDecipher(bundle); err != nil {
		out.DecipherErr = err
		out.Decipher = mo.None[*Routine]()
		log.Debug("decipher routine not extracted", map[string]any{"error": err})
	} else {
		out.Decipher = mo.Some(r)
		log.Debug("decipher routine extracted", map[string]any{"name": r.Name, "helper": r.Helper != ""})
	}

	if r, err := extractNTransform(bundle); err != nil {
		out.NTransformErr = err
		out.NTransform = mo.None[*Routine]()
		log.Debug("n-transform routine not extracted", map[string]any{"error": err})
	} else {
		out.NTransform = mo.Some(r)
		log.Debug("n-transform routine extracted", map[string]any{"name": r.Name})
	}

	return out
}

func extractionFailed(routine string, cause error) error {
	return WrapError(ErrCodeExtractionFailed, routine+" routine", cause)
}

// nameAfter returns the text between anchor and the next end marker.
func nameAfter(bundle, anchor, end string) (string, error) {
	_, rest, ok := strings.Cut(bundle, anchor)
	if !ok {
		return "", NewError(ErrCodeAnchorNotFound, "routine anchor missing", anchor)
	}
	name, _, ok := strings.Cut(rest, end)
	if !ok || name == "" {
		return "", NewError(ErrCodeAnchorNotFound, "routine name terminator missing", end)
	}
	return name, nil
}

func extractDecipher(bundle string) (*Routine, error) {
	name, err := nameAfter(bundle, decipherAnchor, decipherNameEnd)
	if err != nil {
		return nil, extractionFailed("decipher", err)
	}
	r, err := extractFunction(bundle, name)
	if err != nil {
		return nil, extractionFailed("decipher", err)
	}
	helper, err := extractHelper(bundle, r)
	if err != nil {
		return nil, extractionFailed("decipher", err)
	}
	r.Helper = helper
	return r, nil
}

func extractNTransform(bundle string) (*Routine, error) {
	name, err := nameAfter(bundle, nTransformAnchor, nTransformNameEnd)
	if err != nil {
		return nil, extractionFailed("n-transform", err)
	}
	if m := indexedNameRe.FindStringSubmatch(name); m != nil {
		name, err = resolveIndexedName(bundle, m[1], m[2])
		if err != nil {
			return nil, extractionFailed("n-transform", err)
		}
	}
	r, err := extractFunction(bundle, name)
	if err != nil {
		return nil, extractionFailed("n-transform", err)
	}
	return r, nil
}

// resolveIndexedName turns "arr[i]" into the i-th element of the array
// literal assigned to arr.
func resolveIndexedName(bundle, array, index string) (string, error) {
	start := findDefinition(bundle, array+"=[")
	if start < 0 {
		return "", NewError(ErrCodeAnchorNotFound, "array literal missing", array)
	}
	literal, err := ScanBalanced(bundle, start+len(array)+1)
	if err != nil {
		return "", err
	}
	i, err := strconv.Atoi(index)
	if err != nil {
		return "", NewError(ErrCodeAnchorNotFound, "bad array index", index)
	}
	elems := strings.Split(literal[1:len(literal)-1], ",")
	if i >= len(elems) {
		return "", NewError(ErrCodeAnchorNotFound, "array index past literal", fmt.Sprintf("%s[%d]", array, i))
	}
	return strings.TrimSpace(elems[i]), nil
}

// extractFunction captures "name=function(param){...}".
func extractFunction(bundle, name string) (*Routine, error) {
	if !identRe.MatchString(name) {
		return nil, NewError(ErrCodeAnchorNotFound, "routine name is not an identifier", name)
	}
	def := name + paramListStart
	at := findDefinition(bundle, def)
	if at < 0 {
		return nil, NewError(ErrCodeAnchorNotFound, "routine definition missing", def)
	}
	params := bundle[at+len(def):]
	closeParen := strings.IndexByte(params, ')')
	if closeParen < 0 {
		return nil, NewError(ErrCodeUnbalancedBrackets, "routine parameter list unterminated", name)
	}
	param := strings.TrimSpace(params[:closeParen])
	if !identRe.MatchString(param) {
		return nil, NewError(ErrCodeAnchorNotFound, "routine must take one parameter", param)
	}
	body, err := ScanBalanced(bundle, at+len(def)+closeParen+1)
	if err != nil {
		return nil, err
	}
	return &Routine{Name: name, Param: param, Body: body}, nil
}

// findDefinition finds def where it is not the tail of a longer identifier.
func findDefinition(bundle, def string) int {
	from := 0
	for {
		i := strings.Index(bundle[from:], def)
		if i < 0 {
			return -1
		}
		i += from
		if i == 0 || !isIdentByte(bundle[i-1]) {
			return i
		}
		from = i + 1
	}
}

func isIdentByte(c byte) bool {
	return c == '_' || c == '$' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

// extractHelper finds the object used right after "a=a.split("");" in the
// routine body and captures "var X={...}".
func extractHelper(bundle string, r *Routine) (string, error) {
	split := r.Param + "=" + r.Param + `.split("");`
	_, rest, ok := strings.Cut(r.Body, split)
	if !ok {
		return "", NewError(ErrCodeAnchorNotFound, "split call missing in routine body", split)
	}
	rest = strings.TrimPrefix(strings.TrimSpace(rest), r.Param+"=")
	m := helperCallRe.FindStringSubmatch(rest)
	if m == nil {
		return "", NewError(ErrCodeAnchorNotFound, "helper call missing in routine body", r.Name)
	}
	helper := m[1]
	start := "var " + helper + "={"
	at := strings.Index(bundle, start)
	if at < 0 {
		return "", NewError(ErrCodeAnchorNotFound, "helper object missing", start)
	}
	obj, err := ScanBalanced(bundle, at+len(start)-1)
	if err != nil {
		return "", err
	}
	return "var " + helper + "=" + obj, nil
}
