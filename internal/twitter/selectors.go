package twitter

// The posting surface has no stable API, so every interaction goes
// through an ordered list of selector candidates: the current DOM first,
// older fallbacks after. When the frontend ships a new testid the list
// grows instead of the client breaking outright.

var usernameSelectors = []string{
	`input[name="text"]`,
	`input[autocomplete="username"]`,
	`[data-testid="LoginForm_Username_Input"]`,
	`input[type="text"]`,
}

var passwordSelectors = []string{
	`input[name="password"]`,
	`input[autocomplete="current-password"]`,
	`[data-testid="LoginForm_Password_Input"]`,
	`input[type="password"]`,
	`input[aria-label="Password"]`,
}

var verificationInputSelectors = []string{
	`input[data-testid="ocfEnterTextTextInput"]`,
	`input[name="text"]`,
	`input[type="text"]`,
}

var composeButtonSelectors = []string{
	`a[href="/compose/tweet"]`,
	`a[data-testid="SideNav_NewTweet_Button"]`,
	`a[aria-label="Post"]`,
	`a[aria-label="Tweet"]`,
	`div[aria-label="Tweet"]`,
	`div[aria-label="Post"]`,
}

var tweetTextareaSelectors = []string{
	`div[role="textbox"][data-testid="tweetTextarea_0"]`,
	`div[contenteditable="true"][data-testid="tweetTextarea_0"]`,
	`div[role="textbox"]`,
	`div[contenteditable="true"]`,
}

var postButtonSelectors = []string{
	`div[data-testid="tweetButtonInline"]`,
	`div[data-testid="tweetButton"]`,
	`button[data-testid="tweetButtonInline"]`,
	`button[data-testid="tweetButton"]`,
}

var threadAddButtonSelectors = []string{
	`[data-testid="addButton"]`,
	`div[aria-label="Add"]`,
	`div[aria-label="Add post"]`,
}

var replyButtonSelectors = []string{
	`[data-testid="reply"]`,
	`div[aria-label="Reply"]`,
}

var tweetArticleSelectors = []string{
	`article[data-testid="tweet"]`,
	`[data-testid="tweet"]`,
	`article[role="article"]`,
}

var loginSuccessSelectors = []string{
	`[data-testid="SideNav_NewTweet_Button"]`,
	`[data-testid="AppTabBar_Home_Link"]`,
	`[aria-label="Home"]`,
	`[data-testid="tweetButtonInline"]`,
}

// securityIndicators are page-content fragments that signal a login
// challenge rather than the home feed.
var securityIndicators = []string{
	"Verify your identity",
	"confirmation code",
	"unusual login",
	"suspicious activity",
	"verify it's you",
	"Enter your phone number",
	"Check your phone",
}

// emailChallengeIndicators narrow a challenge down to the email-code
// variant that the mailbox reader can satisfy.
var emailChallengeIndicators = []string{
	"confirmation code",
	"verify it's you",
}
