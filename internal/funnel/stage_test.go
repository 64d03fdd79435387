package funnel

import "testing"

func TestClassifyAllProgression(t *testing.T) {
	cases := []struct {
		name string
		msgs []Message
		want Stage
	}{
		{
			name: "empty_history",
			msgs: nil,
			want: StageNew,
		},
		{
			name: "assistant_only",
			msgs: []Message{
				{Role: RoleAssistant, Content: "Hello, how can I help?"},
			},
			want: StageNew,
		},
		{
			name: "single_user_message",
			msgs: []Message{
				{Role: RoleUser, Content: "hi"},
			},
			want: StageResponded,
		},
		{
			name: "whitespace_user_message_still_counts_as_response",
			msgs: []Message{
				{Role: RoleUser, Content: "   "},
			},
			want: StageResponded,
		},
		{
			name: "assistant_qualifies",
			msgs: []Message{
				{Role: RoleUser, Content: "hi"},
				{Role: RoleAssistant, Content: "Would you like to speak with an advisor this week?"},
			},
			want: StageQualified,
		},
		{
			name: "user_converts_with_time",
			msgs: []Message{
				{Role: RoleUser, Content: "hi"},
				{Role: RoleAssistant, Content: "Would you like to speak with an advisor this week?"},
				{Role: RoleUser, Content: "I'm free at 3pm tomorrow"},
			},
			want: StageConverted,
		},
		{
			name: "no_regression_after_conversion",
			msgs: []Message{
				{Role: RoleUser, Content: "hi"},
				{Role: RoleAssistant, Content: "Would you like to speak with an advisor this week?"},
				{Role: RoleUser, Content: "I'm free at 3pm tomorrow"},
				{Role: RoleAssistant, Content: "Great, see you then"},
			},
			want: StageConverted,
		},
		{
			name: "keyword_must_be_whole_phrase",
			msgs: []Message{
				{Role: RoleUser, Content: "hi"},
				{Role: RoleAssistant, Content: "We have scandalous offers"},
			},
			want: StageResponded,
		},
		{
			name: "conversion_phrase_not_matched_inside_larger_word",
			msgs: []Message{
				{Role: RoleUser, Content: "hi"},
				{Role: RoleAssistant, Content: "Shall we schedule a call?"},
				{Role: RoleUser, Content: "that leads available nowhere"},
			},
			want: StageQualified,
		},
		{
			name: "conversion_keyword_without_time",
			msgs: []Message{
				{Role: RoleUser, Content: "hi"},
				{Role: RoleAssistant, Content: "Shall we schedule a call?"},
				{Role: RoleUser, Content: "works for me"},
			},
			want: StageConverted,
		},
		{
			name: "weekday_counts_as_time_expression",
			msgs: []Message{
				{Role: RoleUser, Content: "hi"},
				{Role: RoleAssistant, Content: "What time works best for you?"},
				{Role: RoleUser, Content: "Let's do Tuesday"},
			},
			want: StageConverted,
		},
		{
			name: "twenty_four_hour_clock",
			msgs: []Message{
				{Role: RoleUser, Content: "hi"},
				{Role: RoleAssistant, Content: "Can arrange a call if you like"},
				{Role: RoleUser, Content: "14:30 suits"},
			},
			want: StageConverted,
		},
		{
			name: "chatty_user_does_not_skip_qualification",
			msgs: []Message{
				{Role: RoleUser, Content: "hi"},
				{Role: RoleAssistant, Content: "Tell me more about your business"},
				{Role: RoleUser, Content: "call me at 5pm"},
			},
			want: StageResponded,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ClassifyAll(tc.msgs)
			if got != tc.want {
				t.Fatalf("ClassifyAll()=%q, want %q", got, tc.want)
			}
		})
	}
}

func TestClassifyIsDeterministic(t *testing.T) {
	msgs := []Message{
		{Role: RoleUser, Content: "hi"},
		{Role: RoleAssistant, Content: "Would you like to talk to an advisor?"},
		{Role: RoleUser, Content: "tomorrow morning"},
	}
	first := ClassifyAll(msgs)
	second := ClassifyAll(msgs)
	if first != second {
		t.Fatalf("ClassifyAll not deterministic: %q vs %q", first, second)
	}
}

func TestClassifyNeverRegresses(t *testing.T) {
	history := []Message{
		{Role: RoleUser, Content: "hi"},
		{Role: RoleAssistant, Content: "Would you like to speak with an advisor?"},
		{Role: RoleUser, Content: "free at 3pm"},
		{Role: RoleAssistant, Content: "Great, see you then"},
		{Role: RoleUser, Content: "thanks"},
	}

	prev := StageNew
	for i := 1; i <= len(history); i++ {
		next := Classify(prev, history[:i])
		if Rank(next) < Rank(prev) {
			t.Fatalf("stage regressed from %q to %q at message %d", prev, next, i)
		}
		prev = next
	}
	if prev != StageConverted {
		t.Fatalf("final stage = %q, want %q", prev, StageConverted)
	}
}

func TestClassifyUnknownPreviousDegradesToNew(t *testing.T) {
	got := Classify(Stage("bogus"), nil)
	if got != StageNew {
		t.Fatalf("Classify with unknown prev = %q, want %q", got, StageNew)
	}
}

func TestRankOrder(t *testing.T) {
	if !(Rank(StageNew) < Rank(StageResponded) &&
		Rank(StageResponded) < Rank(StageQualified) &&
		Rank(StageQualified) < Rank(StageConverted)) {
		t.Fatal("stage ranks are not strictly increasing")
	}
}
