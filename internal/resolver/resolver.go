package resolver

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/terrazul-dev/tz/internal/errs"
	"github.com/terrazul-dev/tz/internal/registry"
)

// Registry is the collaborator the resolver consumes: one version listing
// per package name, memoized within a resolve pass.
type Registry interface {
	PackageVersions(ctx context.Context, name string) (*registry.PackageList, error)
}

// ResolvedPackage is the chosen version for one package plus its own
// dependency ranges, used to close the graph and to build lockfile entries.
type ResolvedPackage struct {
	Version      string
	Dependencies map[string]string
	PublishedAt  registry.Timestamp
}

// Resolution is the outcome of one resolve pass.
type Resolution struct {
	Packages map[string]ResolvedPackage
	Warnings []string
}

// Options tune a resolve pass.
type Options struct {
	// Locked maps package names to versions from a prior lockfile. When a
	// locked version still satisfies every constraint on its package it is
	// preferred over the highest match, keeping untouched packages stable
	// across reruns.
	Locked map[string]string
}

// Resolver resolves version ranges against a registry.
type Resolver struct {
	registry Registry
}

// New creates a Resolver backed by the given registry collaborator.
func New(reg Registry) *Resolver {
	return &Resolver{registry: reg}
}

// requirement is one range imposed on a package by one requester.
type requirement struct {
	requester  string
	rawRange   string
	constraint *semver.Constraints
	exact      *semver.Version // non-nil for an exact pin
}

// frame is one unit of work: expand name under the given requirement, with
// path holding the ancestor chain for cycle detection.
type frame struct {
	name      string
	rawRange  string
	requester string
	path      []string
}

// pass holds the mutable state of a single resolve call.
type pass struct {
	resolver *Resolver
	ctx      context.Context
	opts     Options

	lists       map[string]*registry.PackageList
	constraints map[string][]requirement
	resolved    map[string]ResolvedPackage
	warnings    []string
	stack       []frame
}

// Resolve computes a version assignment satisfying every requested range
// and the transitive ranges of each chosen version. requester names the
// root of the constraints (typically the project manifest).
func (r *Resolver) Resolve(ctx context.Context, requested map[string]string, requester string, opts Options) (*Resolution, error) {
	p := &pass{
		resolver:    r,
		ctx:         ctx,
		opts:        opts,
		lists:       make(map[string]*registry.PackageList),
		constraints: make(map[string][]requirement),
		resolved:    make(map[string]ResolvedPackage),
	}

	p.push(requested, requester, nil)

	for len(p.stack) > 0 {
		f := p.stack[len(p.stack)-1]
		p.stack = p.stack[:len(p.stack)-1]
		if err := p.expand(f); err != nil {
			return nil, err
		}
	}

	sort.Strings(p.warnings)
	return &Resolution{Packages: p.resolved, Warnings: p.warnings}, nil
}

// push schedules a set of ranges for expansion. Names are pushed in
// descending order so the LIFO stack pops them ascending, which keeps the
// pass deterministic.
func (p *pass) push(ranges map[string]string, requester string, path []string) {
	names := make([]string, 0, len(ranges))
	for name := range ranges {
		names = append(names, name)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(names)))

	for _, name := range names {
		p.stack = append(p.stack, frame{
			name:      name,
			rawRange:  ranges[name],
			requester: requester,
			path:      path,
		})
	}
}

// expand processes one frame: record the constraint, detect cycles, and
// either re-check an existing choice or select a version and schedule its
// dependencies.
func (p *pass) expand(f frame) error {
	if i := indexOf(f.path, f.name); i >= 0 {
		cycle := append(append([]string{}, f.path[i:]...), f.name)
		return errs.New(errs.CircularDependency, "dependency cycle detected: %s", strings.Join(cycle, " → ")).
			WithDetail("cycle", strings.Join(cycle, " → "))
	}

	req, err := parseRequirement(f)
	if err != nil {
		return err
	}
	p.constraints[f.name] = append(p.constraints[f.name], req)

	if chosen, ok := p.resolved[f.name]; ok {
		v, err := semver.NewVersion(chosen.Version)
		if err != nil {
			return errs.Wrap(errs.ResolutionFailed, err, "resolved version %q of %s is not valid semver", chosen.Version, f.name)
		}
		if req.constraint.Check(v) {
			return nil
		}
		return p.conflict(f.name)
	}

	list, err := p.versionList(f.name)
	if err != nil {
		return err
	}

	info, err := p.selectVersion(f.name, list)
	if err != nil {
		return err
	}

	p.resolved[f.name] = ResolvedPackage{
		Version:      info.Version,
		Dependencies: info.Dependencies,
		PublishedAt:  info.PublishedAt,
	}

	if len(info.Dependencies) > 0 {
		childPath := append(append([]string{}, f.path...), f.name)
		p.push(info.Dependencies, fmt.Sprintf("%s@%s", f.name, info.Version), childPath)
	}
	return nil
}

// versionList fetches a package's versions, memoized for the pass.
func (p *pass) versionList(name string) (*registry.PackageList, error) {
	if list, ok := p.lists[name]; ok {
		return list, nil
	}
	list, err := p.resolver.registry.PackageVersions(p.ctx, name)
	if err != nil {
		return nil, err
	}
	p.lists[name] = list
	return list, nil
}

// selectVersion picks the version for a package under every constraint
// recorded so far. Exact pins to yanked versions fail outright; range
// candidates never include yanked versions.
func (p *pass) selectVersion(name string, list *registry.PackageList) (*registry.VersionInfo, error) {
	reqs := p.constraints[name]

	// An exact pin is a deliberate request: if it names a yanked or absent
	// version, fail now rather than negotiating.
	for _, req := range reqs {
		if req.exact == nil {
			continue
		}
		info, ok := findVersion(list, req.exact)
		if !ok {
			return nil, errs.New(errs.VersionNotFound, "%s has no version %s", name, req.exact.Original()).
				WithDetail("package", name).
				WithDetail("version", req.exact.Original())
		}
		if info.Yanked {
			e := errs.New(errs.VersionYanked, "%s@%s has been yanked", name, req.exact.Original()).
				WithDetail("package", name).
				WithDetail("version", req.exact.Original())
			if info.YankedReason != "" {
				e = e.WithDetail("reason", info.YankedReason)
			}
			return nil, e
		}
	}

	var candidates []*semver.Version
	var yankedSkipped *semver.Version
	parsed := make(map[string]*registry.VersionInfo)

	for vstr := range list.Versions {
		v, err := semver.NewVersion(vstr)
		if err != nil {
			continue // malformed registry entries are not candidates
		}
		info := list.Versions[vstr]
		// The map key is what the constraints are checked against; it wins
		// over whatever the response body put in the version field.
		info.Version = vstr

		satisfiesAll := true
		for _, req := range reqs {
			if !req.constraint.Check(v) {
				satisfiesAll = false
				break
			}
		}
		if !satisfiesAll {
			continue
		}
		if info.Yanked {
			if yankedSkipped == nil || v.GreaterThan(yankedSkipped) {
				yankedSkipped = v
			}
			continue
		}
		candidates = append(candidates, v)
		parsed[v.String()] = &info
	}

	if len(candidates) == 0 {
		if len(reqs) > 1 {
			return nil, p.conflict(name)
		}
		return nil, errs.New(errs.NoCandidates, "no version of %s satisfies %s", name, reqs[0].rawRange).
			WithDetail("package", name).
			WithDetail("range", reqs[0].rawRange).
			WithDetail("requester", reqs[0].requester)
	}

	sort.Sort(semver.Collection(candidates))
	choice := candidates[len(candidates)-1]

	// Prefer the locked version when it is still a valid candidate.
	if locked, ok := p.opts.Locked[name]; ok {
		if lv, err := semver.NewVersion(locked); err == nil {
			for _, c := range candidates {
				if c.Equal(lv) {
					choice = c
					break
				}
			}
		}
	}

	if yankedSkipped != nil && yankedSkipped.GreaterThan(choice) {
		p.warnings = append(p.warnings,
			fmt.Sprintf("%s@%s is yanked; selected %s instead", name, yankedSkipped.Original(), choice.Original()))
	}

	return parsed[choice.String()], nil
}

// conflict builds a VERSION_CONFLICT error naming every requester and range
// imposed on the package.
func (p *pass) conflict(name string) error {
	reqs := p.constraints[name]
	parts := make([]string, 0, len(reqs))
	for _, req := range reqs {
		parts = append(parts, fmt.Sprintf("%s requires %s", req.requester, req.rawRange))
	}
	sort.Strings(parts)

	e := errs.New(errs.VersionConflict, "conflicting requirements for %s: %s", name, strings.Join(parts, ", ")).
		WithDetail("package", name)
	if v, ok := p.resolved[name]; ok {
		e = e.WithDetail("chosen", v.Version)
	}
	return e
}

// parseRequirement parses a frame's range string, flagging exact pins.
func parseRequirement(f frame) (requirement, error) {
	raw := strings.TrimSpace(f.rawRange)
	if raw == "" || raw == "latest" {
		raw = ">= 0.0.0"
	}

	c, err := semver.NewConstraint(raw)
	if err != nil {
		return requirement{}, errs.Wrap(errs.ResolutionFailed, err, "invalid version range %q for %s (required by %s)", f.rawRange, f.name, f.requester)
	}

	req := requirement{requester: f.requester, rawRange: f.rawRange, constraint: c}
	if exact, err := semver.StrictNewVersion(raw); err == nil {
		req.exact = exact
	}
	return req, nil
}

// findVersion locates a registry entry whose version equals v.
func findVersion(list *registry.PackageList, v *semver.Version) (*registry.VersionInfo, bool) {
	for vstr := range list.Versions {
		parsed, err := semver.NewVersion(vstr)
		if err != nil {
			continue
		}
		if parsed.Equal(v) {
			info := list.Versions[vstr]
			info.Version = vstr
			return &info, true
		}
	}
	return nil, false
}

func indexOf(list []string, s string) int {
	for i, v := range list {
		if v == s {
			return i
		}
	}
	return -1
}
