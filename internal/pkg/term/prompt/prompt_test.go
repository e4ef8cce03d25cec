// Copyright OverSkill, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package prompt

import (
	"testing"

	"github.com/AlecAivazis/survey/v2"
	"github.com/stretchr/testify/require"
)

func TestPrompt_Get(t *testing.T) {
	t.Run("passes the message and default to the survey input", func(t *testing.T) {
		// GIVEN
		var gotMessage, gotDefault string
		fake := Prompt(func(p survey.Prompt, out interface{}, opts ...survey.AskOpt) error {
			internal, ok := p.(*prompt)
			require.True(t, ok)
			input, ok := internal.prompter.(*survey.Input)
			require.True(t, ok)
			gotMessage = input.Message
			gotDefault = input.Default
			result := out.(*string)
			*result = "countmaster"
			return nil
		})

		// WHEN
		got, err := fake.Get("Which app?", "", nil, WithDefaultInput("ab12cd"))

		// THEN
		require.NoError(t, err)
		require.Equal(t, "Which app?", gotMessage)
		require.Equal(t, "ab12cd", gotDefault)
		require.Equal(t, "countmaster", got)
	})
}

func TestPrompt_SelectOne(t *testing.T) {
	t.Run("fails when there are no options", func(t *testing.T) {
		fake := Prompt(func(p survey.Prompt, out interface{}, opts ...survey.AskOpt) error {
			return nil
		})

		_, err := fake.SelectOne("Which environment?", "", nil)

		require.ErrorIs(t, err, ErrEmptyOptions)
	})
	t.Run("defaults to the first option", func(t *testing.T) {
		// GIVEN
		var gotDefault interface{}
		fake := Prompt(func(p survey.Prompt, out interface{}, opts ...survey.AskOpt) error {
			internal := p.(*prompt)
			sel := internal.prompter.(*survey.Select)
			gotDefault = sel.Default
			result := out.(*string)
			*result = "staging"
			return nil
		})

		// WHEN
		got, err := fake.SelectOne("Which environment?", "", []string{"preview", "staging", "production"})

		// THEN
		require.NoError(t, err)
		require.Equal(t, "preview", gotDefault)
		require.Equal(t, "staging", got)
	})
}

func TestPrompt_Confirm(t *testing.T) {
	t.Run("applies the true default option", func(t *testing.T) {
		// GIVEN
		var gotDefault bool
		fake := Prompt(func(p survey.Prompt, out interface{}, opts ...survey.AskOpt) error {
			internal := p.(*prompt)
			confirm := internal.prompter.(*survey.Confirm)
			gotDefault = confirm.Default
			result := out.(*bool)
			*result = true
			return nil
		})

		// WHEN
		ok, err := fake.Confirm("Promote to production?", "", WithTrueDefault())

		// THEN
		require.NoError(t, err)
		require.True(t, gotDefault)
		require.True(t, ok)
	})
}
