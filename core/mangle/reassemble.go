package mangle

import (
	"github.com/dotnet-toolset/Netfuser-sub001/core/cil"
)

// reassemble writes the tree back into the method, verifies it and shrinks
// branches. MaxStack is recomputed in every mode; DebugMode does so before
// branch optimization and additionally checks that no block lost code.
func reassemble(ctx *Context) error {
	body := ctx.Method
	instrs, err := ctx.root.Flatten()
	if err != nil {
		return err
	}
	body.Instructions = instrs
	if err := verifyTargets(body); err != nil {
		return err
	}
	if ctx.Config.DebugMode {
		if err := verifyConservation(ctx.root); err != nil {
			return err
		}
		if _, err := cil.ComputeMaxStack(body); err != nil {
			return violation(body.Name, "%v", err)
		}
	}
	cil.OptimizeBranches(body)
	maxStack, err := cil.ComputeMaxStack(body)
	if err != nil {
		return violation(body.Name, "%v", err)
	}
	body.MaxStack = maxStack
	return nil
}

// verifyTargets checks that every instruction occurs once and that every
// branch operand and handler boundary is part of the stream.
func verifyTargets(body *cil.MethodBody) error {
	present := make(map[*cil.Instruction]struct{}, len(body.Instructions))
	for _, ins := range body.Instructions {
		if _, dup := present[ins]; dup {
			return violation(body.Name, "instruction %s emitted twice", ins)
		}
		present[ins] = struct{}{}
	}
	for _, ins := range body.Instructions {
		if ins.OpCode.IsBranch() && ins.Target() == nil {
			return violation(body.Name, "%s has no target", ins)
		}
		for _, t := range ins.Targets() {
			if t == nil {
				return violation(body.Name, "%s has a nil target", ins)
			}
			if _, ok := present[t]; !ok {
				return violation(body.Name, "%s targets %s which is not emitted", ins, t)
			}
		}
	}
	for _, h := range body.Handlers {
		for _, ins := range []*cil.Instruction{h.TryStart, h.TryEnd, h.FilterStart, h.HandlerStart, h.HandlerEnd} {
			if ins == nil {
				continue
			}
			if _, ok := present[ins]; !ok {
				return violation(body.Name, "%s handler boundary %s is not emitted", h.Kind, ins)
			}
		}
	}
	return nil
}

// verifyConservation checks that each regular block still emits all of its
// original instructions.
func verifyConservation(root *Root) error {
	for _, b := range root.Regulars() {
		emitted := make(map[*cil.Instruction]struct{})
		for _, f := range b.Fragments() {
			for _, ins := range f {
				emitted[ins] = struct{}{}
			}
		}
		for _, ins := range b.Instructions() {
			if _, ok := emitted[ins]; !ok {
				return violation(root.Body.Name, "%s dropped from %s", ins, b)
			}
		}
	}
	return nil
}
